package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/config"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/httputil"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/services"
)

// categoriaBudget is the product count below which the run drops to root
// category pages. Once almost every product already has a category there is
// nothing left for leaf pages to contribute, and the handful of root pages
// cover the whole catalog much faster.
const categoriaBudget = 100

// Orchestrator drives one full scrape: menu discovery, per-city page
// downloads, and the persistence pass.
type Orchestrator struct {
	site    *config.SiteConfig
	cfg     config.ScraperConfig
	clients *httputil.Clients
	svc     *services.Service
}

func New(cfg *config.Config, clients *httputil.Clients, svc *services.Service) *Orchestrator {
	return &Orchestrator{
		site:    cfg.Site,
		cfg:     cfg.Scraper,
		clients: clients,
		svc:     svc,
	}
}

// Run executes one scrape cycle. It is safe to call again on the same day:
// the run guard turns the second call into a no-op.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.New().String()[:8]
	inicio := time.Now()

	ja, err := o.svc.JaExecutouHoje(ctx)
	if err != nil {
		return fmt.Errorf("run guard: %w", err)
	}
	if ja {
		log.Printf("[%s] already ran today, skipping", runID)
		return nil
	}

	if err := o.svc.FecharLacuna(ctx); err != nil {
		return fmt.Errorf("close gap: %w", err)
	}

	cookies, err := CarregarCookies(o.cfg.CookiesPath)
	if err != nil {
		return err
	}
	nomes := make([]string, len(cookies))
	for i, c := range cookies {
		nomes[i] = c.Nome
	}

	cidadeIDs, err := o.svc.SetCidades(ctx, nomes)
	if err != nil {
		return fmt.Errorf("register cities: %w", err)
	}

	folhas, raizes, err := o.Categorias(ctx)
	if err != nil {
		return err
	}

	categorias := folhas
	semCategoria, err := o.svc.ContarProdutosSemCategoria(ctx)
	if err != nil {
		return fmt.Errorf("count uncategorized: %w", err)
	}
	if semCategoria < categoriaBudget {
		categorias = raizes
		log.Printf("[%s] %d products without category, using %d root pages", runID, semCategoria, len(raizes))
	} else {
		log.Printf("[%s] %d products without category, using %d leaf pages", runID, semCategoria, len(folhas))
	}

	resultados, falhas, err := o.baixarTudo(ctx, cookies, categorias)
	if err != nil {
		return err
	}
	log.Printf("[%s] downloaded %d pages (%d failed) in %s", runID, len(resultados), falhas, time.Since(inicio).Round(time.Second))

	dados := services.ProcessarDadosBrutos(resultados)

	if _, err := o.svc.SalvarProdutos(ctx, dados.Produtos); err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	if _, err := o.svc.SalvarPrecos(ctx, dados.PrecosUniformes, dados.PrecosVariaveis, cidadeIDs); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	if _, err := o.svc.SalvarDisponibilidades(ctx, dados.Disponibilidades, cidadeIDs); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}

	if err := o.svc.RegistrarExecucao(ctx); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if err := o.svc.RelatorioMudancas(ctx); err != nil {
		return err
	}

	log.Printf("[%s] scrape finished in %s", runID, time.Since(inicio).Round(time.Second))
	return nil
}

// baixarTudo downloads every (city, category) page with bounded
// concurrency. A page that fails to download or extract is logged and
// skipped; the run only aborts when more than half the pages fail, which
// points at a layout change rather than flaky pages.
func (o *Orchestrator) baixarTudo(ctx context.Context, cookies []CidadeCookie, categorias []Categoria) ([]models.ResultadoCategoria, int, error) {
	delay := time.Duration(o.cfg.DelayMS) * time.Millisecond
	total := len(cookies) * len(categorias)

	var mu sync.Mutex
	var resultados []models.ResultadoCategoria
	var falhas int

	limite := o.cfg.Concurrency
	if limite <= 0 {
		limite = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limite)

	for _, cookie := range cookies {
		for _, cat := range categorias {
			cookie, cat := cookie, cat
			g.Go(func() error {
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return ctx.Err()
					}
				}

				doc, err := o.fetchDocument(ctx, cat.URL, cookie.App)
				if err != nil {
					log.Printf("fetch %s (%s): %v", cat.URL, cookie.Nome, err)
					mu.Lock()
					falhas++
					mu.Unlock()
					return nil
				}

				var categoria *string
				if cat.Nome != "" {
					nome := cat.Nome
					categoria = &nome
				}
				produtos, precos, err := o.extrairPagina(doc, categoria)
				if err != nil {
					log.Printf("extract %s (%s): %v", cat.URL, cookie.Nome, err)
					mu.Lock()
					falhas++
					mu.Unlock()
					return nil
				}

				mu.Lock()
				resultados = append(resultados, models.ResultadoCategoria{
					Cidade:   cookie.Nome,
					Produtos: produtos,
					Precos:   precos,
				})
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, falhas, err
	}
	if falhas > total/2 {
		return nil, falhas, fmt.Errorf("%d of %d pages failed, aborting run", falhas, total)
	}
	return resultados, falhas, nil
}
