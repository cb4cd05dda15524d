package services

import (
	"context"
	"fmt"
	"log"
)

// RelatorioMudancas logs a digest of every product whose earliest and
// latest recorded prices differ, with the direction and size of the move.
func (s *Service) RelatorioMudancas(ctx context.Context) error {
	mudancas, err := s.store.MudancasPreco(ctx)
	if err != nil {
		return fmt.Errorf("price changes: %w", err)
	}
	if len(mudancas) == 0 {
		log.Printf("price digest: no changes recorded")
		return nil
	}

	var subiram, cairam int
	for _, m := range mudancas {
		if m.PrecoFinal > m.PrecoInicial {
			subiram++
		} else {
			cairam++
		}
		log.Printf("price digest: product %d went R$ %.2f -> R$ %.2f between %s and %s",
			m.ProdutoID, m.PrecoInicial, m.PrecoFinal,
			m.PrimeiraData.Format("2006-01-02"), m.UltimaData.Format("2006-01-02"))
	}
	log.Printf("price digest: %d products changed (%d up, %d down)", len(mudancas), subiram, cairam)
	return nil
}
