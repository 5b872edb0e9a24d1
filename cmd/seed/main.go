// Command seed fills the leads table with fake but valid leads for local development.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadtracker_backend/internal/events"
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/repository"
	"leadtracker_backend/internal/leads/seed"
	"leadtracker_backend/internal/leads/service"
	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/db"
	"leadtracker_backend/platform/logger"

	"github.com/brianvoe/gofakeit/v6"
)

func main() {
	count := flag.Int("count", 50, "number of leads to generate")
	randSeed := flag.Int64("seed", 0, "random seed (0 picks one from the clock)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	pipeline, err := domain.LoadPipeline(cfg.GetPipelineFile())
	if err != nil {
		log.Error("failed to load stage pipeline", "error", err)
		panic("failed to load stage pipeline: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	svc := service.New(repository.New(pool, pipeline), pipeline, eventBus, log)

	if *randSeed == 0 {
		*randSeed = time.Now().UnixNano()
	}
	reqs := seed.Generate(gofakeit.New(*randSeed), pipeline, *count, time.Now().UTC())

	created, skipped, err := seed.Run(ctx, svc, reqs, log)
	if err != nil {
		log.Error("seed aborted", "error", err, "created", created, "skipped", skipped)
		os.Exit(1)
	}
	log.Info("seed complete", "created", created, "skipped", skipped, "seed", *randSeed)
}
