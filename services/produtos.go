package services

import (
	"context"
	"fmt"
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// ResultadoProdutos summarizes one product upsert pass.
type ResultadoProdutos struct {
	Inseridos   int64
	Atualizados int
	Inalterados int
}

// ContarProdutosSemCategoria reports how many stored products still lack a
// category.
func (s *Service) ContarProdutosSemCategoria(ctx context.Context) (int, error) {
	return s.store.ContarProdutosSemCategoria(ctx)
}

// SalvarProdutos inserts unseen products, follows site-side renames, and
// backfills the category of stored products that still lack one. A stored
// non-nil category is never overwritten.
func (s *Service) SalvarProdutos(ctx context.Context, produtos []models.ProdutoInfo) (*ResultadoProdutos, error) {
	if len(produtos) == 0 {
		return &ResultadoProdutos{}, nil
	}

	hoje := s.Hoje()
	res := &ResultadoProdutos{}

	err := s.store.InTransaction(ctx, func(q storage.Queries) error {
		links := make([]string, len(produtos))
		for i, p := range produtos {
			links[i] = p.Link
		}
		existentes, err := q.ProdutosPorLink(ctx, links)
		if err != nil {
			return fmt.Errorf("lookup products: %w", err)
		}

		var novos []models.Produto
		for _, p := range produtos {
			atual, ok := existentes[p.Link]
			if !ok {
				novos = append(novos, models.Produto{
					Nome:            p.Nome,
					Link:            p.Link,
					Categoria:       p.Categoria,
					DataAtualizacao: hoje,
				})
				continue
			}
			mudou := false
			if atual.Nome != p.Nome {
				atual.Nome = p.Nome
				mudou = true
			}
			if atual.Categoria == nil && p.Categoria != nil {
				atual.Categoria = p.Categoria
				mudou = true
			}
			if mudou {
				atual.DataAtualizacao = hoje
				if err := q.AtualizarProduto(ctx, atual); err != nil {
					return fmt.Errorf("update product: %w", err)
				}
				res.Atualizados++
				continue
			}
			res.Inalterados++
		}

		if len(novos) > 0 {
			inseridos, err := q.InserirProdutos(ctx, novos)
			if err != nil {
				return fmt.Errorf("insert products: %w", err)
			}
			res.Inseridos = inseridos
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("products: %d inserted, %d updated, %d unchanged",
		res.Inseridos, res.Atualizados, res.Inalterados)
	return res, nil
}
