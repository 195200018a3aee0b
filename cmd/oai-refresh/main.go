// Command oai-refresh mirrors upstream sources into the record store once
// and exits. Sources can be registered with -add.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oaiserve/internal/config"
	"oaiserve/internal/domain/source"
	"oaiserve/internal/services/ingest"
	"oaiserve/internal/store/postgres"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		sourceID = flag.Int64("source", 0, "refresh a single source by id")
		all      = flag.Bool("all", false, "refresh every registered source")
		add      = flag.String("add", "", "register a source with this endpoint URL")
		name     = flag.String("name", "", "name of the source registered with -add")
		prefix   = flag.String("prefix", "oai_dc", "metadata prefix of the source registered with -add")
		set      = flag.String("set", "", "restrict the source registered with -add to a set")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()
	repo := postgres.NewRepo(pool)

	if *add != "" {
		src, err := source.NewSource(*name, *add, *prefix, *set)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid source")
		}
		if err := repo.Sources().Save(ctx, src); err != nil {
			log.Fatal().Err(err).Msg("save source failed")
		}
		log.Info().Int64("source_id", src.ID).Str("source", src.Name).Msg("source registered")
	}

	harvester := ingest.NewHarvester(repo.UnitOfWork(), repo.Sources(), ingest.HarvesterOptions{
		MaxRetries: cfg.OAI.HarvestRetries,
	})

	switch {
	case *all:
		if err := ingest.NewRefresher(ctx, harvester, repo.Sources()).RefreshAll(ctx); err != nil {
			log.Fatal().Err(err).Msg("refresh failed")
		}
	case *sourceID > 0:
		if _, err := harvester.Refresh(ctx, *sourceID); err != nil {
			log.Fatal().Err(err).Int64("source_id", *sourceID).Msg("refresh failed")
		}
	case *add == "":
		flag.Usage()
		os.Exit(2)
	}
}
