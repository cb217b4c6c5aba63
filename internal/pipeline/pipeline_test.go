package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blogsmith/internal/core"
	"blogsmith/internal/llm"
	"blogsmith/internal/persistence"
	"blogsmith/internal/textops"
)

type fakeResearcher struct {
	scrape     string
	searchURLs []string
	sources    []core.ResearchSource
}

func (f *fakeResearcher) ScrapeURL(ctx context.Context, target string) string {
	return f.scrape
}

func (f *fakeResearcher) Search(ctx context.Context, query string) []string {
	return f.searchURLs
}

func (f *fakeResearcher) BatchScrape(ctx context.Context, urls []string, minAccepted, maxAttempts int) []core.ResearchSource {
	return f.sources
}

type fakeEnricher struct{}

func (fakeEnricher) EnrichMedia(ctx context.Context, html string, bundle *core.ResearchBundle, imageCount, tableCount int) string {
	return html
}

func (fakeEnricher) FindYouTubeVideo(ctx context.Context, topic, contentExcerpt string) string {
	return ""
}

func (fakeEnricher) FindAuthorityLinks(ctx context.Context, topic string, count int) []string {
	return []string{"https://reference.example.com/study"}
}

func testConfig() Config {
	return Config{
		MinSources:        1,
		MaxSourceURLs:     5,
		DraftWordTarget:   100,
		ExternalLinkFloor: 0,
		InternalLinkFloor: 0,
		SimilarityWindow:  5,
		TableCount:        0,
		ImagesPerArticle:  0,
	}
}

func scriptResearchStages(mock *llm.MockProvider) {
	mock.Respond("meta description", "A focused article on widget maintenance routines.")
	mock.Respond("diverse web search queries", `["widget care", "widget statistics", "widget how-to", "widget comparison", "widget experts"]`)
	mock.Respond("core topic", "widget maintenance")
	mock.Respond("SEO keywords", `[{"keyword":"widget maintenance","relevance":0.9},{"keyword":"widget care","relevance":0.7}]`)
	mock.Respond("Summarize the key points", "Widgets need regular maintenance to last.")
}

// scriptBodyStages wires the post-merge passes to echo the merged body,
// so word counts survive the whole chain unchanged.
func scriptBodyStages(mock *llm.MockProvider, draft1, draft2, merged string) {
	mock.Respond("Write part 1 of 2", draft1)
	mock.Respond("Write part 2 of 2", draft2)
	mock.Respond("Combine these two article parts", merged)
	mock.Respond("Cross-check this article", merged)
	mock.Respond("Reformat this article", merged)
	mock.Respond("Remove near-duplicate sentences", merged)
	mock.Respond("conversational", merged)
	mock.Respond("Suggest 5 compelling SEO titles", `["A Practical Guide to Widget Maintenance Routines"]`)
}

func testSources() []core.ResearchSource {
	return []core.ResearchSource{
		{URL: "https://widgets.example.com/guide", RawContent: strings.Repeat("widget facts ", 50), Title: "Guide"},
	}
}

func TestRunMergePreservesDraftWordCounts(t *testing.T) {
	draft1 := strings.TrimSpace(strings.Repeat("alpha ", 120))
	draft2 := strings.TrimSpace(strings.Repeat("beta ", 120))
	merged := draft1 + "\n\nBridging paragraph between the halves.\n\n" + draft2 +
		"\n\n## Frequently Asked Questions\n\n### Is it tested?\n\nYes."

	mock := llm.NewMockProvider()
	scriptResearchStages(mock)
	scriptBodyStages(mock, draft1, draft2, merged)

	db := persistence.NewMemoryDB()
	p := NewPipeline(
		&fakeResearcher{searchURLs: []string{"https://widgets.example.com/guide"}, sources: testSources()},
		llm.NewClient(mock),
		fakeEnricher{},
		db.Posts(),
		nil,
		testConfig(),
	)

	result, err := p.Run(context.Background(), Options{
		Seed:   Seed{Headline: "Widget maintenance"},
		UserID: "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Article == nil {
		t.Fatal("no article produced")
	}

	draftWords := textops.CountWords(draft1) + textops.CountWords(draft2)
	gotWords := textops.CountWords(result.Article.HTMLBody)
	if gotWords < draftWords {
		t.Errorf("merged article has %d words, drafts total %d", gotWords, draftWords)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if result.Regenerated {
		t.Error("should not regenerate without similar posts")
	}

	saved, err := db.Posts().Get(context.Background(), result.Article.ID)
	if err != nil {
		t.Fatalf("article not persisted: %v", err)
	}
	if saved.Title != "A Practical Guide to Widget Maintenance Routines" {
		t.Errorf("unexpected title: %q", saved.Title)
	}
}

func TestRunFatalOnZeroResearchContent(t *testing.T) {
	mock := llm.NewMockProvider()
	scriptResearchStages(mock)

	p := NewPipeline(
		&fakeResearcher{scrape: "No content available"},
		llm.NewClient(mock),
		fakeEnricher{},
		persistence.NewMemoryDB().Posts(),
		nil,
		testConfig(),
	)

	_, err := p.Run(context.Background(), Options{
		Seed:   Seed{URL: "https://dead.example.com/post"},
		UserID: "u1",
	})
	if !errors.Is(err, ErrNoUsableContent) {
		t.Errorf("expected ErrNoUsableContent, got %v", err)
	}
}

func TestRunSimilarityGuardRegeneratesExactlyOnce(t *testing.T) {
	draft1 := strings.TrimSpace(strings.Repeat("alpha ", 50))
	draft2 := strings.TrimSpace(strings.Repeat("beta ", 50))
	merged := draft1 + "\n\n" + draft2 + "\n\n## Frequently Asked Questions\n\n### Q?\n\nA."

	mock := llm.NewMockProvider()
	scriptResearchStages(mock)
	scriptBodyStages(mock, draft1, draft2, merged)
	mock.Respond("isTooSimilar", `{"isTooSimilar": true, "similarToTitle": "Old Widget Post"}`)

	db := persistence.NewMemoryDB()
	if err := db.Posts().Save(context.Background(), &core.FinalArticle{
		ID:        "old",
		UserID:    "u1",
		Title:     "Old Widget Post",
		HTMLBody:  "<p>old body about widgets</p>",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(
		&fakeResearcher{searchURLs: []string{"https://widgets.example.com/guide"}, sources: testSources()},
		llm.NewClient(mock),
		fakeEnricher{},
		db.Posts(),
		nil,
		testConfig(),
	)

	result, err := p.Run(context.Background(), Options{
		Seed:   Seed{Headline: "Widget maintenance"},
		UserID: "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Regenerated {
		t.Error("expected a regeneration after similarity hit")
	}

	draftCalls := 0
	for _, prompt := range mock.Prompts() {
		if strings.Contains(prompt, "Write part 1 of 2") {
			draftCalls++
		}
	}
	if draftCalls != 2 {
		t.Errorf("expected exactly 2 first-draft calls (one regeneration), got %d", draftCalls)
	}
}

func TestRunRecordsWarningsOnProviderFailure(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.FailWith(errors.New("provider down"))

	db := persistence.NewMemoryDB()
	p := NewPipeline(
		&fakeResearcher{scrape: strings.Repeat("seed content about widgets ", 20)},
		llm.NewClient(mock),
		fakeEnricher{},
		db.Posts(),
		nil,
		testConfig(),
	)

	result, err := p.Run(context.Background(), Options{
		Seed:   Seed{URL: "https://widgets.example.com/seed"},
		UserID: "u1",
	})
	if err != nil {
		t.Fatalf("provider failure should degrade, not abort: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected stage warnings from failed completions")
	}
	if result.Article == nil {
		t.Fatal("article should still be produced from fallback content")
	}
}

func TestRunRequiresSeedAndUser(t *testing.T) {
	p := NewPipeline(&fakeResearcher{}, llm.NewClient(llm.NewMockProvider()), fakeEnricher{}, persistence.NewMemoryDB().Posts(), nil, testConfig())

	if _, err := p.Run(context.Background(), Options{UserID: "u1"}); err == nil {
		t.Error("expected error without a seed")
	}
	if _, err := p.Run(context.Background(), Options{Seed: Seed{Headline: "h"}}); err == nil {
		t.Error("expected error without a user id")
	}
}

func TestSelectBestTitlePrefersTopicAndLengthBand(t *testing.T) {
	candidates := []string{
		"Short",
		"A Practical Guide to Widget Maintenance Routines",
		"Completely Unrelated Subject Matter Discussed at Length Here",
	}
	got := selectBestTitle(candidates, "widget maintenance")
	if got != "A Practical Guide to Widget Maintenance Routines" {
		t.Errorf("unexpected title: %q", got)
	}

	if got := selectBestTitle(nil, "topic"); got != "" {
		t.Errorf("expected empty for no candidates, got %q", got)
	}
}
