package services

import (
	"context"
	"fmt"
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// SetCidades makes sure every configured city exists and returns the full
// name-to-id map, sentinel included. On an empty table the sentinel city is
// inserted first so it takes id 1, which the price table's default column
// points at.
func (s *Service) SetCidades(ctx context.Context, nomes []string) (map[string]int64, error) {
	err := s.store.InTransaction(ctx, func(q storage.Queries) error {
		total, err := q.ContarCidades(ctx)
		if err != nil {
			return fmt.Errorf("count cities: %w", err)
		}
		if total == 0 {
			if _, err := q.InserirCidades(ctx, []string{models.SemCidade}); err != nil {
				return fmt.Errorf("insert sentinel city: %w", err)
			}
		}
		inseridas, err := q.InserirCidades(ctx, nomes)
		if err != nil {
			return fmt.Errorf("insert cities: %w", err)
		}
		if inseridas > 0 {
			log.Printf("registered %d new cities", inseridas)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.store.CidadeIDsPorNome(ctx, append([]string{models.SemCidade}, nomes...))
}
