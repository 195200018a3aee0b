package ingest

import (
	"context"
	"errors"
	"sync"

	"oaiserve/internal/schedule"
	"oaiserve/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// ErrRefreshRunning is returned when a refresh of the same source is in flight
var ErrRefreshRunning = errors.New("refresh already running")

// Refresher runs source refreshes in the background, at most one per source
type Refresher struct {
	harvester *Harvester
	sources   repositories.SourceRepository
	base      context.Context

	mu      sync.Mutex
	running map[int64]bool
	wg      sync.WaitGroup
}

// NewRefresher binds background refreshes to ctx; cancelling it stops them
func NewRefresher(ctx context.Context, harvester *Harvester, sources repositories.SourceRepository) *Refresher {
	return &Refresher{
		harvester: harvester,
		sources:   sources,
		base:      ctx,
		running:   make(map[int64]bool),
	}
}

// Trigger starts an asynchronous refresh of one source. Unknown sources are
// reported synchronously with repositories.ErrNotFound.
func (r *Refresher) Trigger(ctx context.Context, sourceID int64) error {
	if _, err := r.sources.FindByID(ctx, sourceID); err != nil {
		return err
	}
	if !r.acquire(sourceID) {
		return ErrRefreshRunning
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(sourceID)
		if _, err := r.harvester.Refresh(r.base, sourceID); err != nil {
			log.Error().Err(err).Int64("source_id", sourceID).Msg("source refresh failed")
		}
	}()
	return nil
}

// RefreshAll refreshes every source in turn, skipping those already running.
// Failures are logged and do not stop the remaining sources.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	sources, err := r.sources.FindAll(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.acquire(src.ID) {
			log.Info().Int64("source_id", src.ID).Msg("refresh already running, skipping")
			continue
		}
		_, err := r.harvester.Refresh(ctx, src.ID)
		r.release(src.ID)
		if err != nil {
			failed++
			log.Error().Err(err).Int64("source_id", src.ID).Msg("source refresh failed")
		}
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(sources)).Msg("refresh run finished with failures")
	}
	return nil
}

// Run refreshes all sources on the cron schedule until ctx is done
func (r *Refresher) Run(ctx context.Context, expr string) error {
	return schedule.Cron(ctx, "source-refresh", expr, func(ctx context.Context) {
		if err := r.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("scheduled refresh failed")
		}
	})
}

// Wait blocks until triggered refreshes have finished
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) acquire(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[id] {
		return false
	}
	r.running[id] = true
	return true
}

func (r *Refresher) release(id int64) {
	r.mu.Lock()
	delete(r.running, id)
	r.mu.Unlock()
}
