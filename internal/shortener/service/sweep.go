package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/store"
)

// SweepBatchSize bounds how many rows a single sweep touches so a huge
// backlog can't hold a write transaction open for long.
const SweepBatchSize = 1000

// SweepService periodically retires expired links: anonymous ones are
// deleted outright, owned ones are deactivated so they still show on the
// dashboard.
type SweepService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweepService creates a new sweep service with the given interval.
// If interval is 0 or negative, defaults to 24 hours.
func NewSweepService(st store.Store, logger *slog.Logger, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &SweepService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *SweepService) Start() {
	go s.run()
	s.Logger.Info("sweep service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *SweepService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("sweep service stopped")
}

// run is the main background worker loop.
func (s *SweepService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one pass. Both mutations run in a single transaction so a
// crash mid-sweep never leaves half the work applied.
func (s *SweepService) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	var deleted, deactivated int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		deleted, err = tx.Links().DeleteExpiredAnonymousLinks(ctx, now, SweepBatchSize)
		if err != nil {
			return err
		}
		deactivated, err = tx.Links().DeactivateExpiredOwnedLinks(ctx, now, SweepBatchSize)
		return err
	})
	if err != nil {
		s.Logger.Error("link sweep failed", "error", err)
		return
	}

	s.Logger.Info("link sweep completed",
		"anonymous_deleted", deleted,
		"owned_deactivated", deactivated,
	)
}
