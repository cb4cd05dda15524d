package services

import (
	"time"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// Service bundles the persistence operations that turn one scrape of the
// site into period rows. Every Salvar* method is idempotent: re-running it
// with the same data is a no-op.
type Service struct {
	store storage.Store
	now   func() time.Time
	loc   *time.Location
}

func New(store storage.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		loc:   carregarLocalizacao(),
	}
}

// The store timezone. Dates are compared as calendar days in the shop's
// local zone, then stored normalized to midnight UTC.
func carregarLocalizacao() *time.Location {
	loc, err := time.LoadLocation("America/Cuiaba")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Hoje returns the current calendar day.
func (s *Service) Hoje() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ontem is the close date used when a period ends: the day before the
// observation that ended it.
func (s *Service) ontem() time.Time {
	return s.Hoje().AddDate(0, 0, -1)
}
