// Package pipeline orchestrates the end-to-end article generation
// workflow: research, drafting, repair passes, media enrichment and
// persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/llm"
	"blogsmith/internal/logger"
	"blogsmith/internal/persistence"
	"blogsmith/internal/textops"
)

// Stage identifies one step of the generation state machine.
type Stage string

const (
	StageResearch     Stage = "research"
	StageDraftPart1   Stage = "draft_part_1"
	StageDraftPart2   Stage = "draft_part_2"
	StageMerge        Stage = "merge"
	StageFactCheck    Stage = "fact_check"
	StageFormat       Stage = "format"
	StageDeduplicate  Stage = "deduplicate"
	StageEnsureFAQ    Stage = "ensure_faq"
	StageEnsureLinks  Stage = "ensure_link_density"
	StageHumanize     Stage = "humanize"
	StageSimilarity   Stage = "similarity_guard"
	StageEnrichMedia  Stage = "enrich_media"
	StageFinalizeHTML Stage = "finalize_html"
	StagePersist      Stage = "persist"
)

// ErrNoUsableContent is returned when research yields no content at all.
var ErrNoUsableContent = errors.New("no usable research content")

// Config holds pipeline tuning knobs.
type Config struct {
	MinSources        int
	MaxSourceURLs     int
	DraftWordTarget   int
	ExternalLinkFloor int
	InternalLinkFloor int
	SimilarityWindow  int
	TableCount        int
	ImagesPerArticle  int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinSources:        8,
		MaxSourceURLs:     15,
		DraftWordTarget:   1000,
		ExternalLinkFloor: 7,
		InternalLinkFloor: 5,
		SimilarityWindow:  20,
		TableCount:        2,
		ImagesPerArticle:  3,
	}
}

// ConfigFrom maps loaded configuration onto pipeline knobs.
func ConfigFrom(cfg config.Pipeline, images config.Images) Config {
	out := DefaultConfig()
	if cfg.MinSources > 0 {
		out.MinSources = cfg.MinSources
	}
	if cfg.MaxSourceURLs > 0 {
		out.MaxSourceURLs = cfg.MaxSourceURLs
	}
	if cfg.DraftWordTarget > 0 {
		out.DraftWordTarget = cfg.DraftWordTarget
	}
	if cfg.ExternalLinkFloor > 0 {
		out.ExternalLinkFloor = cfg.ExternalLinkFloor
	}
	if cfg.InternalLinkFloor > 0 {
		out.InternalLinkFloor = cfg.InternalLinkFloor
	}
	if cfg.SimilarityWindow > 0 {
		out.SimilarityWindow = cfg.SimilarityWindow
	}
	if cfg.TableCount > 0 {
		out.TableCount = cfg.TableCount
	}
	if images.PerArticle > 0 {
		out.ImagesPerArticle = images.PerArticle
	}
	return out
}

// Pipeline generates one article per Run call.
type Pipeline struct {
	research    Researcher
	completions *llm.Client
	enricher    MediaEnricher
	posts       persistence.PostRepository
	pacer       Pacer
	config      Config
}

// NewPipeline wires the pipeline's collaborators. A nil pacer disables
// pacing.
func NewPipeline(research Researcher, completions *llm.Client, enricher MediaEnricher, posts persistence.PostRepository, pacer Pacer, cfg Config) *Pipeline {
	if pacer == nil {
		pacer = noopPacer{}
	}
	return &Pipeline{
		research:    research,
		completions: completions,
		enricher:    enricher,
		posts:       posts,
		pacer:       pacer,
		config:      cfg,
	}
}

// Seed is the starting point for one article: a URL to react to, or a
// headline plus optional brand website.
type Seed struct {
	URL      string
	Headline string
	Website  string
}

// Options configures one generation run.
type Options struct {
	Seed           Seed
	UserID         string
	HumanizeLevel  core.HumanizeLevel
	TargetKeywords []string
	InternalLinks  []string
	BrandInfo      string
}

// Result is the outcome of one run: the persisted article plus every
// degraded-stage warning collected along the way.
type Result struct {
	Article     *core.FinalArticle
	Warnings    []core.StageWarning
	Regenerated bool
}

// Run executes the full state machine for one article. Provider
// failures inside a stage degrade to fallback text and are recorded as
// warnings; only zero research content and persistence failures abort
// the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Seed.URL == "" && opts.Seed.Headline == "" {
		return nil, errors.New("seed requires a url or a headline")
	}
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if opts.HumanizeLevel == "" {
		opts.HumanizeLevel = core.HumanizeNormal
	}

	result := &Result{}

	bundle, err := p.buildResearchBundle(ctx, opts, result)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body := p.generateBody(ctx, bundle, opts.HumanizeLevel, result)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// One bounded regeneration when the new body reads too close to a
	// recent post. The second attempt is accepted unconditionally.
	if verdict := p.checkSimilarity(ctx, body, bundle, result); verdict.IsTooSimilar {
		logger.Info("article too similar to recent post, regenerating once", "similar_to", verdict.SimilarToTitle)
		bundle.DiversityNudge = fmt.Sprintf(
			"IMPORTANT: write this completely differently from the existing post titled %q. Use a different angle, different structure and different examples.",
			verdict.SimilarToTitle,
		)
		body = p.generateBody(ctx, bundle, opts.HumanizeLevel, result)
		result.Regenerated = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := p.selectTitle(ctx, bundle, body, result)

	html := textops.MarkdownToHTML(body)
	html = p.enricher.EnrichMedia(ctx, html, bundle, p.config.ImagesPerArticle, p.config.TableCount)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	html = textops.SanitizeHTML(html)
	html = textops.RemoveEmptyParagraphs(html)
	html, headings := textops.ExtractTOC(html)

	now := time.Now().UTC()
	article := &core.FinalArticle{
		ID:         uuid.New().String(),
		UserID:     opts.UserID,
		Title:      title,
		HTMLBody:   html,
		SEOScore:   seoScore(html, headings),
		Headings:   headings,
		Keywords:   articleKeywords(bundle),
		Citations:  sourceURLs(bundle),
		CreatedAt:  now,
		RevealDate: now,
		SourceURL:  opts.Seed.URL,
	}

	if err := p.posts.Save(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to persist article: %w", err)
	}

	result.Article = article
	logger.Info("article generated",
		"id", article.ID,
		"title", article.Title,
		"words", textops.CountWords(article.HTMLBody),
		"warnings", len(result.Warnings),
		"regenerated", result.Regenerated,
	)
	return result, nil
}

// complete runs one paced completion and records any degradation
// against the stage.
func (p *Pipeline) complete(ctx context.Context, stage Stage, prompt string, maxTokens int, result *Result) string {
	if err := p.pacer.Wait(ctx); err != nil {
		result.Warnings = append(result.Warnings, core.StageWarning{
			Stage:   string(stage),
			Message: "cancelled while pacing: " + err.Error(),
			At:      time.Now().UTC(),
		})
		return ""
	}

	text, warn := p.completions.Complete(ctx, prompt, maxTokens)
	if warn != nil {
		warn.Stage = string(stage)
		result.Warnings = append(result.Warnings, *warn)
	}
	return text
}

// seoScore is a coarse deterministic 0-100 score over structural
// signals only.
func seoScore(html string, headings []core.Heading) int {
	score := 40

	words := textops.CountWords(html)
	switch {
	case words >= 2000:
		score += 20
	case words >= 1200:
		score += 12
	case words >= 600:
		score += 5
	}

	if len(headings) >= 5 {
		score += 10
	} else if len(headings) >= 3 {
		score += 5
	}

	if textops.CountExternalLinks(html) >= 5 {
		score += 10
	}
	if textops.CountInternalLinks(html) >= 3 {
		score += 10
	}
	if textops.HasFAQSection(html) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

func articleKeywords(bundle *core.ResearchBundle) []string {
	seen := make(map[string]bool)
	var keywords []string
	add := func(keyword string) {
		keyword = strings.TrimSpace(strings.ToLower(keyword))
		if keyword == "" || seen[keyword] {
			return
		}
		seen[keyword] = true
		keywords = append(keywords, keyword)
	}

	for _, keyword := range bundle.TargetKeywords {
		add(keyword)
	}
	for _, extracted := range bundle.ExtractedKeywords {
		add(extracted.Keyword)
	}
	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

func sourceURLs(bundle *core.ResearchBundle) []string {
	urls := make([]string, 0, len(bundle.Sources))
	for _, source := range bundle.Sources {
		urls = append(urls, source.URL)
	}
	return urls
}
