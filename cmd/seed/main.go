// Command seed loads interview question banks from YAML into Postgres.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/seed"
)

func main() {
	path := flag.String("file", seed.DefaultPath, "seed YAML file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	interviews, err := seed.Load(*path)
	if err != nil {
		slog.Error("seed load failed", slog.String("file", *path), slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	n, err := seed.Apply(ctx, postgres.NewInterviewRepo(pool), interviews)
	if err != nil {
		slog.Error("seed failed", slog.Int("written", n), slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("interviews seeded", slog.Int("count", n), slog.String("file", *path))
}
