package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"oaiserve/internal/config"
	"oaiserve/internal/services/tokens"
	"oaiserve/internal/store/postgres"
)

func main() {
	if len(os.Args) != 1 {
		fmt.Println("usage: go run tools/oai_purge.go")
		os.Exit(1)
	}
	cfg := config.Load() // reads DB_DSN / OAI_TOKEN_STORE from env
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var p *tokens.Purger
	switch cfg.OAI.TokenStore {
	case config.StoreRedis:
		fmt.Println("redis tokens expire natively; nothing to purge")
		return
	case config.StoreMemory:
		fmt.Println("memory tokens live in the server process; nothing to purge")
		return
	default:
		pool := postgres.MustOpen(ctx, cfg.DB.DSN)
		defer pool.Close()
		p = tokens.NewPurger(postgres.NewRepo(pool).Tokens(), cfg.OAI.PurgeCron, nil)
	}

	n, err := p.PurgeOnce(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("purged %d expired resumption tokens\n", n)
}
