package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/config"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/scraper"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/workers"
)

// Scheduler fires the daily scrape on a cron expression and runs the image
// worker after every successful scrape. The run guard inside the
// orchestrator keeps an extra firing on the same day harmless.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	images       *workers.ImageWorker
	cron         *cron.Cron
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, images *workers.ImageWorker) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		images:       images,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	log.Printf("starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
	_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Scheduler.Cron, err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	select {
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	default:
	}

	if err := s.orchestrator.Run(ctx); err != nil {
		log.Printf("scheduled run: %v", err)
		return
	}
	if err := s.images.Run(ctx); err != nil {
		log.Printf("image worker: %v", err)
	}
}

// TriggerNow runs one cycle immediately, outside the cron schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if err := s.orchestrator.Run(ctx); err != nil {
		return err
	}
	return s.images.Run(ctx)
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	close(s.stopCh)
}
