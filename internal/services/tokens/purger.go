package tokens

import (
	"context"
	"time"

	"oaiserve/internal/metrics"
	"oaiserve/internal/schedule"
	"oaiserve/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Purger deletes expired resumption tokens on a cron schedule
type Purger struct {
	tokens repositories.TokenRepository
	expr   string
	now    func() time.Time
}

// NewPurger creates a purger. An empty expression falls back to every 15 minutes.
func NewPurger(tokens repositories.TokenRepository, expr string, now func() time.Time) *Purger {
	if expr == "" {
		expr = "*/15 * * * *"
	}
	if now == nil {
		now = time.Now
	}
	return &Purger{tokens: tokens, expr: expr, now: now}
}

// Run purges on every tick until ctx is cancelled
func (p *Purger) Run(ctx context.Context) error {
	return schedule.Cron(ctx, "token-purge", p.expr, func(ctx context.Context) {
		if _, err := p.PurgeOnce(ctx); err != nil {
			log.Error().Err(err).Msg("token purge failed")
		}
	})
}

// PurgeOnce deletes every token expired at the current time
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := p.tokens.PurgeExpired(ctx, p.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TokensPurged.Add(float64(n))
		log.Info().Int64("purged", n).Dur("duration", time.Since(start)).Msg("expired resumption tokens purged")
	}
	return n, nil
}
