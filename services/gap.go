package services

import (
	"context"
	"fmt"
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// FecharLacuna closes every open period at the date of the last recorded
// run when that run is more than one day old. Without this, a scraper that
// was down for a week would stretch week-old prices across days nobody
// observed.
func (s *Service) FecharLacuna(ctx context.Context) error {
	ultima, existe, err := s.store.UltimaExecucao(ctx)
	if err != nil {
		return fmt.Errorf("last run: %w", err)
	}
	if !existe {
		return nil
	}

	dias := int(s.Hoje().Sub(ultima).Hours() / 24)
	if dias <= 1 {
		return nil
	}

	return s.store.InTransaction(ctx, func(q storage.Queries) error {
		fechados, err := q.FecharTodosAbertos(ctx, ultima)
		if err != nil {
			return fmt.Errorf("close open periods: %w", err)
		}
		log.Printf("gap of %d days since last run: closed %d open periods at %s",
			dias, fechados, ultima.Format("2006-01-02"))
		return nil
	})
}

// JaExecutouHoje reports whether a run was already recorded today.
func (s *Service) JaExecutouHoje(ctx context.Context) (bool, error) {
	ultima, existe, err := s.store.UltimaExecucao(ctx)
	if err != nil || !existe {
		return false, err
	}
	return ultima.Format("2006-01-02") == s.Hoje().Format("2006-01-02"), nil
}

// RegistrarExecucao records today's run in the execution log.
func (s *Service) RegistrarExecucao(ctx context.Context) error {
	return s.store.RegistrarExecucao(ctx, s.Hoje())
}
