package services

import (
	"context"
	"fmt"
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// ResultadoPeriodos summarizes one reconciliation pass over a period table.
type ResultadoPeriodos struct {
	Abertos     int64
	Fechados    int64
	Descartados int
}

// SalvarPrecos reconciles today's price observations against the open price
// periods. Uniform prices are keyed against the sentinel city; variable
// prices against their own city. Products or cities the database does not
// know yet are dropped and counted, never created here.
func (s *Service) SalvarPrecos(ctx context.Context, uniformes []models.PrecoInfo, variaveis []models.PrecoVariavel, cidadeIDs map[string]int64) (*ResultadoPeriodos, error) {
	links := make([]string, 0, len(uniformes)+len(variaveis))
	for _, p := range uniformes {
		links = append(links, p.Link)
	}
	for _, p := range variaveis {
		links = append(links, p.Link)
	}

	produtoIDs, err := s.store.ProdutoIDsPorLink(ctx, links)
	if err != nil {
		return nil, fmt.Errorf("resolve product ids: %w", err)
	}

	semCidade, ok := cidadeIDs[models.SemCidade]
	if !ok {
		return nil, fmt.Errorf("sentinel city %q not registered", models.SemCidade)
	}

	res := &ResultadoPeriodos{}
	hoje := make(map[storage.Key]float64, len(links))
	for _, p := range uniformes {
		pid, ok := produtoIDs[p.Link]
		if !ok {
			res.Descartados++
			continue
		}
		hoje[storage.Key{ProdutoID: pid, CidadeID: semCidade}] = p.Preco
	}
	for _, p := range variaveis {
		pid, okP := produtoIDs[p.Link]
		cid, okC := cidadeIDs[p.Cidade]
		if !okP || !okC {
			res.Descartados++
			continue
		}
		hoje[storage.Key{ProdutoID: pid, CidadeID: cid}] = p.Preco
	}

	dia := s.Hoje()
	fim := s.ontem()

	err = s.store.InTransaction(ctx, func(q storage.Queries) error {
		abertos, err := q.PrecosAbertos(ctx)
		if err != nil {
			return fmt.Errorf("load open prices: %w", err)
		}

		p := reconciliar(hoje, abertos, precoIgual)

		if len(p.fechar) > 0 {
			fechados, err := q.FecharPrecos(ctx, p.fechar, fim)
			if err != nil {
				return fmt.Errorf("close prices: %w", err)
			}
			res.Fechados = fechados
		}
		if len(p.inserir) > 0 {
			rows := make([]models.HistoricoPreco, 0, len(p.inserir))
			for k, preco := range p.inserir {
				rows = append(rows, models.HistoricoPreco{
					ProdutoID:  k.ProdutoID,
					CidadeID:   k.CidadeID,
					Preco:      preco,
					DataInicio: dia,
				})
			}
			abertos, err := q.InserirPrecos(ctx, rows)
			if err != nil {
				return fmt.Errorf("open prices: %w", err)
			}
			res.Abertos = abertos
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("prices: %d periods opened, %d closed, %d observations dropped",
		res.Abertos, res.Fechados, res.Descartados)
	return res, nil
}
