package pipeline

import (
	"context"

	"blogsmith/internal/core"
)

// Researcher gathers source material for an article.
type Researcher interface {
	ScrapeURL(ctx context.Context, target string) string
	Search(ctx context.Context, query string) []string
	BatchScrape(ctx context.Context, urls []string, minAccepted, maxAttempts int) []core.ResearchSource
}

// MediaEnricher places video, tables and images into finished HTML.
type MediaEnricher interface {
	EnrichMedia(ctx context.Context, html string, bundle *core.ResearchBundle, imageCount, tableCount int) string
	FindYouTubeVideo(ctx context.Context, topic, contentExcerpt string) string
	FindAuthorityLinks(ctx context.Context, topic string, count int) []string
}

// Pacer spaces outbound provider calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// noopPacer is used when no pacing is configured.
type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error { return ctx.Err() }
