package redisstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MustOpen connects to Redis, retrying the initial ping with exponential backoff
func MustOpen(ctx context.Context, addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	err := backoff.RetryNotify(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("addr", addr).Dur("retry_in", wait).Msg("redis ping failed, retrying")
	})
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("redis connect fail")
	}
	return client
}
