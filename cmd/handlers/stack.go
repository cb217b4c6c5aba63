package handlers

import (
	"fmt"

	"blogsmith/internal/config"
	"blogsmith/internal/enrich"
	"blogsmith/internal/llm"
	"blogsmith/internal/persistence"
	"blogsmith/internal/pipeline"
	"blogsmith/internal/ratelimit"
	"blogsmith/internal/research"
	"blogsmith/internal/scheduler"
)

// stack bundles the wired components a command needs.
type stack struct {
	db          persistence.Database
	pipeline    *pipeline.Pipeline
	coordinator *scheduler.Coordinator
	close       func() error
}

// buildStack wires providers, enricher, pipeline and coordinator from
// loaded configuration. With dryRun, or without a database URL, an
// in-memory store replaces Postgres so nothing is persisted.
func buildStack(dryRun bool) (*stack, error) {
	cfg := config.Get()

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion provider: %w", err)
	}
	completions := llm.NewClientWithLimits(provider, cfg.LLM.Temperature, cfg.LLM.MaxTokens)

	researcher := research.NewClient(cfg.Search, completions)
	images := enrich.NewImageClient(cfg.Images)
	enricher := enrich.NewEnricher(researcher, completions, images)

	var db persistence.Database
	closeFn := func() error { return nil }
	if dryRun || cfg.Database.URL == "" {
		db = persistence.NewMemoryDB()
	} else {
		pg, err := persistence.NewPostgresDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db = pg
		closeFn = pg.Close
	}

	callPacer := ratelimit.NewPacer(cfg.Pipeline.InterCallDelay)
	articlePacer := ratelimit.NewPacer(cfg.Schedule.InterArticleDelay)

	p := pipeline.NewPipeline(
		researcher,
		completions,
		enricher,
		db.Posts(),
		callPacer,
		pipeline.ConfigFrom(cfg.Pipeline, cfg.Images),
	)
	coordinator := scheduler.NewCoordinator(p, db.Credits(), db.Schedules(), articlePacer, cfg.Schedule.MaxBatchSize)

	return &stack{
		db:          db,
		pipeline:    p,
		coordinator: coordinator,
		close:       closeFn,
	}, nil
}
