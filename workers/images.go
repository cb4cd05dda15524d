package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/config"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/httputil"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

const maxImageSize = 10 * 1024 * 1024

// Uploader mirrors downloaded images to object storage.
type Uploader interface {
	UploadImagem(ctx context.Context, produtoID int64, conteudo []byte) (string, error)
}

// ImageWorker fills the image table in two passes: a headless browser pass
// that visits product pages to discover the image URL (the site renders it
// client-side), and an HTTP pass that downloads the discovered URLs.
type ImageWorker struct {
	store    storage.Store
	client   *http.Client
	uploader Uploader // nil when object storage is not configured
	batch    int
	selector string
	workers  int
}

func NewImageWorker(store storage.Store, clients *httputil.Clients, uploader Uploader, cfg *config.Config) *ImageWorker {
	selector := cfg.Site.Selectors.Imagem
	if selector == "" {
		selector = "img"
	}
	return &ImageWorker{
		store:    store,
		client:   clients.Download,
		uploader: uploader,
		batch:    cfg.Scraper.ImageBatch,
		selector: selector,
		workers:  cfg.Scraper.Concurrency,
	}
}

// Run performs one discovery pass followed by one download pass.
func (w *ImageWorker) Run(ctx context.Context) error {
	if err := w.discoverLinks(ctx); err != nil {
		return fmt.Errorf("discover image links: %w", err)
	}
	if err := w.downloadPending(ctx); err != nil {
		return fmt.Errorf("download images: %w", err)
	}
	return nil
}

func (w *ImageWorker) discoverLinks(ctx context.Context) error {
	pendentes, err := w.store.ProdutosSemImagem(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(pendentes) == 0 {
		return nil
	}
	log.Printf("images: %d products without an image link", len(pendentes))

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}

	hoje := time.Now().UTC().Truncate(24 * time.Hour)
	var descobertas []models.Imagem
	for link, produtoID := range pendentes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		src, err := w.imageSrc(page, link)
		if err != nil {
			log.Printf("images: %s: %v", link, err)
			continue
		}
		descobertas = append(descobertas, models.Imagem{
			ProdutoID:       produtoID,
			LinkImagem:      src,
			DataAtualizacao: hoje,
		})
	}

	if len(descobertas) == 0 {
		return nil
	}
	inseridos, err := w.store.InserirLinksImagem(ctx, descobertas)
	if err != nil {
		return err
	}
	log.Printf("images: discovered %d image links", inseridos)
	return nil
}

func (w *ImageWorker) imageSrc(page playwright.Page, link string) (string, error) {
	if _, err := page.Goto(link, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", err
	}

	loc := page.Locator(w.selector).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return "", fmt.Errorf("image not rendered: %w", err)
	}

	src, err := loc.GetAttribute("src")
	if err != nil {
		return "", err
	}
	if src == "" || strings.Contains(src, "data:image") {
		return "", fmt.Errorf("placeholder image on %s", link)
	}
	return src, nil
}

func (w *ImageWorker) downloadPending(ctx context.Context) error {
	pendentes, err := w.store.ImagensPendentes(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(pendentes) == 0 {
		return nil
	}

	var mu sync.Mutex
	var baixadas, falhas int

	limite := w.workers
	if limite <= 0 {
		limite = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limite)

	for _, img := range pendentes {
		img := img
		g.Go(func() error {
			conteudo, err := w.fetch(ctx, img.LinkImagem)
			if err != nil {
				log.Printf("images: download %s: %v", img.LinkImagem, err)
				mu.Lock()
				falhas++
				mu.Unlock()
				return nil
			}

			if err := w.store.AtualizarConteudoImagem(ctx, img.LinkImagem, conteudo); err != nil {
				return err
			}
			if w.uploader != nil {
				if _, err := w.uploader.UploadImagem(ctx, img.ProdutoID, conteudo); err != nil {
					log.Printf("images: upload product %d: %v", img.ProdutoID, err)
				}
			}
			mu.Lock()
			baixadas++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("images: %d downloaded, %d failed", baixadas, falhas)
	return nil
}

func (w *ImageWorker) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
}
