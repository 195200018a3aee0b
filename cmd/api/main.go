package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oaiserve/internal/config"
	httpx "oaiserve/internal/http"
	"oaiserve/internal/services/harvest"
	"oaiserve/internal/services/ingest"
	"oaiserve/internal/services/tokens"
	"oaiserve/internal/store/memory"
	"oaiserve/internal/store/postgres"
	redisstore "oaiserve/internal/store/redis"
	"oaiserve/internal/store/repositories"
	"oaiserve/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	if cfg.App.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup("oaiserve", cfg.Telemetry.StdoutTrace, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	// Init DB
	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()
	repo := postgres.NewRepo(pool)

	// Token store
	var tokenRepo repositories.TokenRepository
	switch cfg.OAI.TokenStore {
	case config.StoreRedis:
		client := redisstore.MustOpen(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		tokenRepo = redisstore.NewTokenRepository(client)
	case config.StoreMemory:
		tokenRepo = memory.NewTokenRepository()
	default:
		tokenRepo = repo.Tokens()
	}

	dispatcher := harvest.NewDispatcher(repo.Records(), tokenRepo, harvest.Options{
		PageSize:       cfg.OAI.PageSize,
		TokenTTL:       cfg.OAI.TokenTTL,
		EndpointName:   cfg.App.EndpointName,
		BaseURL:        cfg.App.BaseURL,
		RepositoryName: cfg.OAI.RepositoryName,
		AdminEmail:     cfg.OAI.AdminEmail,
	})

	harvester := ingest.NewHarvester(repo.UnitOfWork(), repo.Sources(), ingest.HarvesterOptions{
		MaxRetries: cfg.OAI.HarvestRetries,
	})
	refresher := ingest.NewRefresher(ctx, harvester, repo.Sources())

	// Background jobs
	purger := tokens.NewPurger(tokenRepo, cfg.OAI.PurgeCron, nil)
	go func() {
		if err := purger.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("token purge job failed")
		}
	}()
	if cfg.OAI.RefreshCron != "" {
		go func() {
			if err := refresher.Run(ctx, cfg.OAI.RefreshCron); err != nil {
				log.Fatal().Err(err).Msg("source refresh job failed")
			}
		}()
	}

	// Router
	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:     cfg,
		Dispatcher: dispatcher,
		Sources:    repo.Sources(),
		Refresher:  refresher,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Str("endpoint", "/"+cfg.App.EndpointName).
			Str("token_store", cfg.OAI.TokenStore).
			Msgf("OAI-PMH server listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	refresher.Wait()
	_ = shutdownTracing(ctx2)
	log.Info().Msg("server stopped")
}
