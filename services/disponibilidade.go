package services

import (
	"context"
	"fmt"
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// SalvarDisponibilidades reconciles today's per-city sightings against the
// open availability periods. A product seen in a city keeps (or opens) a
// period; a product gone from a city has its period closed.
func (s *Service) SalvarDisponibilidades(ctx context.Context, observadas []models.DisponibilidadeInfo, cidadeIDs map[string]int64) (*ResultadoPeriodos, error) {
	links := make([]string, 0, len(observadas))
	vistos := make(map[string]bool)
	for _, d := range observadas {
		if !vistos[d.ProdutoLink] {
			vistos[d.ProdutoLink] = true
			links = append(links, d.ProdutoLink)
		}
	}

	produtoIDs, err := s.store.ProdutoIDsPorLink(ctx, links)
	if err != nil {
		return nil, fmt.Errorf("resolve product ids: %w", err)
	}

	res := &ResultadoPeriodos{}
	hoje := make(map[storage.Key]bool, len(observadas))
	for _, d := range observadas {
		pid, okP := produtoIDs[d.ProdutoLink]
		cid, okC := cidadeIDs[d.Cidade]
		if !okP || !okC {
			res.Descartados++
			continue
		}
		hoje[storage.Key{ProdutoID: pid, CidadeID: cid}] = true
	}

	dia := s.Hoje()
	fim := s.ontem()

	err = s.store.InTransaction(ctx, func(q storage.Queries) error {
		abertas, err := q.DisponibilidadesAbertas(ctx)
		if err != nil {
			return fmt.Errorf("load open availability: %w", err)
		}

		p := reconciliar(hoje, abertas, func(a, b bool) bool { return a == b })

		if len(p.fechar) > 0 {
			fechados, err := q.FecharDisponibilidades(ctx, p.fechar, fim)
			if err != nil {
				return fmt.Errorf("close availability: %w", err)
			}
			res.Fechados = fechados
		}
		if len(p.inserir) > 0 {
			rows := make([]models.DisponibilidadeCidade, 0, len(p.inserir))
			for k, disponivel := range p.inserir {
				rows = append(rows, models.DisponibilidadeCidade{
					ProdutoID:  k.ProdutoID,
					CidadeID:   k.CidadeID,
					Disponivel: disponivel,
					DataInicio: dia,
				})
			}
			abertos, err := q.InserirDisponibilidades(ctx, rows)
			if err != nil {
				return fmt.Errorf("open availability: %w", err)
			}
			res.Abertos = abertos
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("availability: %d periods opened, %d closed, %d observations dropped",
		res.Abertos, res.Fechados, res.Descartados)
	return res, nil
}
