// Package schedule runs jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
)

// retry delay after gronx fails to compute a tick
const nextTickRetry = 30 * time.Second

// Validate rejects expressions gronx cannot schedule
func Validate(expr string) error {
	if !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression: %q", expr)
	}
	return nil
}

// Cron runs fn at every tick of expr (UTC) until ctx is cancelled. Runs never
// overlap: a tick that falls inside a run is skipped.
func Cron(ctx context.Context, name, expr string, fn func(context.Context)) error {
	if err := Validate(expr); err != nil {
		return err
	}

	log.Info().Str("job", name).Str("cron", expr).Msg("scheduler: started")
	for {
		next, err := gronx.NextTickAfter(expr, time.Now().UTC(), false)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("scheduler: next tick failed")
			next = time.Now().Add(nextTickRetry)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("job", name).Msg("scheduler: stopping")
			return nil
		case <-timer.C:
			fn(ctx)
		}
	}
}
