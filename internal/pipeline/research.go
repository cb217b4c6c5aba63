package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blogsmith/internal/core"
	"blogsmith/internal/llm"
	"blogsmith/internal/logger"
	"blogsmith/internal/research"
	"blogsmith/internal/textops"
)

// defaultInternalLinks are used when the caller supplies no same-site
// link candidates.
var defaultInternalLinks = []string{"/", "/blog", "/about", "/contact"}

// buildResearchBundle runs the RESEARCH stage: seed summary, diversified
// queries, search, batch scrape, topic and keyword derivation. The topic
// is always derived from the scraped material rather than assumed from
// the seed, so a misleading seed title does not steer the whole article.
func (p *Pipeline) buildResearchBundle(ctx context.Context, opts Options, result *Result) (*core.ResearchBundle, error) {
	seed := opts.Seed.URL
	if seed == "" {
		seed = opts.Seed.Headline
	}

	var seedContent string
	if opts.Seed.URL != "" {
		seedContent = p.research.ScrapeURL(ctx, opts.Seed.URL)
		if seedContent == research.NoContent {
			seedContent = ""
		}
	}

	brandInfo := opts.BrandInfo
	if brandInfo == "" && opts.Seed.Website != "" {
		if site := p.research.ScrapeURL(ctx, opts.Seed.Website); site != research.NoContent {
			brandInfo = p.complete(ctx, StageResearch, fmt.Sprintf(
				"Describe this business in 2 sentences based on its website content. Description only.\n\n%s",
				llmExcerpt(site, 3000),
			), 150, result)
			if isFallback(brandInfo) {
				brandInfo = ""
			}
		}
	}

	initialSummary := p.summarizeSeed(ctx, seed, seedContent, opts.Seed.Headline, result)
	metaDescription := p.complete(ctx, StageResearch, fmt.Sprintf(
		"Write a 2-3 sentence meta description for an in-depth blog article based on this material. Description only, no preamble.\n\n%s",
		firstNonEmpty(initialSummary, seed),
	), 200, result)

	queries := p.deriveQueries(ctx, metaDescription, seed, result)

	var urls []string
	seen := make(map[string]bool)
	for _, query := range queries {
		for _, url := range p.research.Search(ctx, query) {
			if seen[url] {
				continue
			}
			seen[url] = true
			urls = append(urls, url)
			if len(urls) >= p.config.MaxSourceURLs {
				break
			}
		}
		if len(urls) >= p.config.MaxSourceURLs {
			break
		}
	}

	sources := p.research.BatchScrape(ctx, urls, p.config.MinSources, len(urls))
	if len(sources) < p.config.MinSources {
		logger.Warn("fewer research sources than desired", "got", len(sources), "wanted", p.config.MinSources)
	}

	// Zero content anywhere is the one fatal research outcome.
	if len(sources) == 0 && seedContent == "" && opts.Seed.Headline == "" {
		return nil, ErrNoUsableContent
	}

	combined := combineSources(sources, seedContent)
	coreTopic := p.deriveTopic(ctx, combined, seed, opts.Seed.Headline, result)

	titles, bodies := p.recentPosts(ctx, opts.UserID)

	internalLinks := opts.InternalLinks
	if len(internalLinks) == 0 {
		internalLinks = defaultInternalLinks
	}

	bundle := &core.ResearchBundle{
		InitialSeed:        seed,
		InitialSummary:     initialSummary,
		Sources:            sources,
		CombinedSummary:    combined,
		CoreTopic:          coreTopic,
		BrandInfo:          brandInfo,
		InternalLinks:      internalLinks,
		ExistingPostTitles: titles,
		ExistingPostBodies: bodies,
		TargetKeywords:     opts.TargetKeywords,
		Timestamp:          time.Now().UTC(),
	}

	bundle.ExternalReferences = p.enricher.FindAuthorityLinks(ctx, coreTopic, p.config.ExternalLinkFloor)
	bundle.YouTubeURL = p.enricher.FindYouTubeVideo(ctx, coreTopic, llmExcerpt(combined, 200))
	bundle.ExtractedKeywords = p.extractKeywords(ctx, combined, coreTopic, result)

	logger.Info("research bundle built",
		"sources", len(bundle.Sources),
		"topic", bundle.CoreTopic,
		"queries", len(queries),
		"external_refs", len(bundle.ExternalReferences),
	)
	return bundle, nil
}

func (p *Pipeline) summarizeSeed(ctx context.Context, seed, seedContent, headline string, result *Result) string {
	if seedContent != "" {
		return p.complete(ctx, StageResearch, fmt.Sprintf(
			"Summarize the key points of this page in 4-6 sentences:\n\n%s",
			llmExcerpt(seedContent, 6000),
		), 400, result)
	}
	if headline != "" {
		return headline
	}
	return seed
}

// deriveQueries asks for 5-8 diversified search queries and falls back
// to deterministic variants when the response is not parseable.
func (p *Pipeline) deriveQueries(ctx context.Context, metaDescription, seed string, result *Result) []string {
	response := p.complete(ctx, StageResearch, fmt.Sprintf(
		`Generate between 5 and 8 diverse web search queries to research an article described as: %q. Cover different angles (statistics, how-to, comparisons, expert opinions). Respond with a JSON array of strings only.`,
		metaDescription,
	), 300, result)

	base := firstNonEmpty(metaDescription, seed)
	fallback := []string{
		base,
		base + " guide",
		base + " statistics",
		base + " best practices",
		base + " examples",
	}

	queries := llm.ParseJSONLenient[[]string](response, fallback)
	if len(queries) == 0 {
		queries = fallback
	}
	if len(queries) > 8 {
		queries = queries[:8]
	}
	return queries
}

func (p *Pipeline) deriveTopic(ctx context.Context, combined, seed, headline string, result *Result) string {
	if combined != "" {
		topic := p.complete(ctx, StageResearch, fmt.Sprintf(
			"In one short phrase (3-8 words), what is the core topic of this material? Phrase only.\n\n%s",
			llmExcerpt(combined, 4000),
		), 60, result)
		topic = strings.TrimSpace(strings.Trim(topic, `"'`))
		if topic != "" && !strings.HasPrefix(topic, "Fallback:") {
			return topic
		}
	}
	if headline != "" {
		return headline
	}
	return seed
}

func (p *Pipeline) extractKeywords(ctx context.Context, combined, topic string, result *Result) []core.ExtractedKeyword {
	fallback := []core.ExtractedKeyword{{Keyword: topic, Relevance: 1.0}}
	if combined == "" {
		return fallback
	}

	response := p.complete(ctx, StageResearch, fmt.Sprintf(
		`Extract the 8 most important SEO keywords from this material. Respond with a JSON array of objects with keys "keyword" and "relevance" (0-1). JSON only.

%s`, llmExcerpt(combined, 4000),
	), 400, result)

	keywords := llm.ParseJSONLenient[[]core.ExtractedKeyword](response, fallback)
	if len(keywords) == 0 {
		return fallback
	}
	return keywords
}

// recentPosts loads the similarity window for the user. Failures here
// degrade to an empty window rather than aborting the run.
func (p *Pipeline) recentPosts(ctx context.Context, userID string) (titles, bodies []string) {
	posts, err := p.posts.ListRecent(ctx, userID, p.config.SimilarityWindow)
	if err != nil {
		logger.Warn("could not load recent posts for similarity window", "error", err.Error())
		return nil, nil
	}
	for _, post := range posts {
		titles = append(titles, post.Title)
		bodies = append(bodies, llmExcerpt(textops.StripTags(post.HTMLBody), 1200))
	}
	return titles, bodies
}

func combineSources(sources []core.ResearchSource, seedContent string) string {
	var sb strings.Builder
	if seedContent != "" {
		sb.WriteString(llmExcerpt(seedContent, 3000))
		sb.WriteString("\n\n")
	}
	for _, source := range sources {
		sb.WriteString(fmt.Sprintf("Source (%s):\n%s\n\n", source.URL, llmExcerpt(source.RawContent, 2000)))
	}
	return strings.TrimSpace(sb.String())
}

func llmExcerpt(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
