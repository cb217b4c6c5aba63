// Package research wraps the web search/scrape provider that grounds
// article generation. The provider is treated as flaky: scrape and search
// degrade to sentinels and empty result sets rather than errors, so a bad
// research pass never aborts a pipeline run on its own.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/llm"
	"blogsmith/internal/logger"
)

// NoContent is the sentinel returned when a scrape produced nothing
// usable. Callers must treat it as "no content", not as an error.
const NoContent = "No content available"

// minUsableContent is the quality floor for scraped text.
const minUsableContent = 100

// maxScrapedLength caps cleaned scrape output so one huge page cannot
// dominate the research bundle.
const maxScrapedLength = 20000

// blockedDomains are excluded from search results: social platforms are
// useless as article sources and frequently block scraping anyway.
var blockedDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"linkedin.com",
	"tiktok.com",
	"pinterest.com",
	"reddit.com",
	"youtube.com",
}

// Client talks to a tavily-style search/scrape API.
type Client struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	completions   *llm.Client
	maxResults    int
	minRawContent int
	rateLimit     time.Duration
	lastCall      time.Time
	language      string
	detector      lingua.LanguageDetector
}

// NewClient creates a research client. completions is used only for the
// authentication-failure fallback and may not be nil.
func NewClient(cfg config.Search, completions *llm.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		completions:   completions,
		maxResults:    cfg.MaxResults,
		minRawContent: cfg.MinRawContent,
		rateLimit:     cfg.RateLimit,
	}
	if c.maxResults <= 0 {
		c.maxResults = 10
	}
	if c.minRawContent <= 0 {
		c.minRawContent = 500
	}

	if cfg.Language != "" {
		c.language = cfg.Language
		c.detector = lingua.NewLanguageDetectorBuilder().FromLanguages(
			lingua.English, lingua.Spanish, lingua.French, lingua.German,
			lingua.Portuguese, lingua.Italian, lingua.Dutch,
		).Build()
	}

	return c
}

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type searchResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content,omitempty"`
	Content    string `json:"content,omitempty"`
	Title      string `json:"title,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// errUnauthorized marks an HTTP 401 from the provider so ScrapeURL can
// take its fabrication path.
type errUnauthorized struct{ body string }

func (e errUnauthorized) Error() string {
	return fmt.Sprintf("search provider rejected credentials: %s", e.body)
}

// doSearch issues one provider request, respecting the rate gap between
// calls.
func (c *Client) doSearch(ctx context.Context, query string, maxResults int, includeRaw bool) ([]searchResult, error) {
	if c.rateLimit > 0 {
		if elapsed := time.Since(c.lastCall); elapsed < c.rateLimit {
			time.Sleep(c.rateLimit - elapsed)
		}
	}
	c.lastCall = time.Now()

	reqBody, err := json.Marshal(searchRequest{
		Query:             query,
		SearchDepth:       "advanced",
		MaxResults:        maxResults,
		IncludeRawContent: includeRaw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errUnauthorized{body: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return parsed.Results, nil
}

// ScrapeURL fetches one URL at advanced depth and returns cleaned text.
// Returns NoContent when the page yielded nothing above the quality
// floor. Never returns an error: on a 401 from the provider it asks the
// completion client to fabricate a plausible summary from the URL alone.
func (c *Client) ScrapeURL(ctx context.Context, target string) string {
	results, err := c.doSearch(ctx, target, 1, true)
	if err != nil {
		if _, is401 := err.(errUnauthorized); is401 {
			logger.Warn("search provider auth failure, fabricating summary", "url", target)
			return c.fabricateSummary(ctx, target)
		}
		logger.Warn("scrape failed", "url", target, "error", err.Error())
		return NoContent
	}
	if len(results) == 0 {
		return NoContent
	}

	data := results[0]
	if text := CleanScrapedText(data.RawContent); len(text) >= minUsableContent {
		return text
	}
	if text := CleanScrapedText(data.Content); len(text) >= minUsableContent {
		return text
	}

	return NoContent
}

// fabricateSummary asks the completion client for a plausible description
// of the page based on its URL. A degraded completion still returns text,
// so this path never fails.
func (c *Client) fabricateSummary(ctx context.Context, target string) string {
	prompt := fmt.Sprintf(`The page at %s could not be fetched. From the URL alone, write a plausible 3-4 sentence summary of what this page is likely about. Plain text only, no caveats about being unable to access the page.`, target)
	text, _ := c.completions.Complete(ctx, prompt, 200)
	return text
}

// Search runs a broad advanced-depth query and returns usable source
// URLs: blocklisted domains and thin results are dropped. Returns an
// empty slice on any provider error, never an error value.
func (c *Client) Search(ctx context.Context, query string) []string {
	results, err := c.doSearch(ctx, query, c.maxResults, true)
	if err != nil {
		logger.Warn("search failed", "query", query, "error", err.Error())
		return nil
	}

	var urls []string
	for _, result := range results {
		if result.URL == "" || isBlockedDomain(result.URL) {
			continue
		}
		if len(result.RawContent) < c.minRawContent {
			continue
		}
		urls = append(urls, result.URL)
	}

	return urls
}

// RawSearch runs a query and returns result URLs without the blocklist
// or content-length filtering. Used for media lookups where the blocked
// platforms are exactly the point. Returns an empty slice on error.
func (c *Client) RawSearch(ctx context.Context, query string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	results, err := c.doSearch(ctx, query, maxResults, false)
	if err != nil {
		logger.Warn("raw search failed", "query", query, "error", err.Error())
		return nil
	}

	var urls []string
	for _, result := range results {
		if result.URL != "" {
			urls = append(urls, result.URL)
		}
	}
	return urls
}

// BatchScrape scrapes urls sequentially, short-circuiting once minAccepted
// usable sources are collected or maxAttempts urls have been tried. A
// shortfall is logged, not an error: the pipeline can draft from fewer
// sources.
func (c *Client) BatchScrape(ctx context.Context, urls []string, minAccepted, maxAttempts int) []core.ResearchSource {
	var sources []core.ResearchSource
	attempts := 0

	for _, target := range urls {
		if len(sources) >= minAccepted {
			break
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}
		attempts++

		content := c.ScrapeURL(ctx, target)
		if content == NoContent {
			// Last-ditch: fetch directly and extract the readable body.
			if text, err := c.fetchReadable(ctx, target); err == nil && len(text) >= minUsableContent {
				content = text
			} else {
				continue
			}
		}

		if !c.allowedLanguage(content) {
			logger.Debug("skipping source in wrong language", "url", target)
			continue
		}

		sources = append(sources, core.ResearchSource{
			URL:        target,
			RawContent: content,
			Title:      titleFromURL(target),
		})
	}

	if len(sources) < minAccepted {
		logger.Warn("collected fewer sources than desired", "got", len(sources), "wanted", minAccepted)
	}

	return sources
}

// fetchReadable fetches the URL directly and runs readability extraction
// over the response, bypassing the search provider entirely.
func (c *Client) fetchReadable(ctx context.Context, target string) (string, error) {
	parsedURL, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("direct fetch returned status %d", resp.StatusCode)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	return CleanScrapedText(article.TextContent), nil
}

// allowedLanguage reports whether text matches the configured language.
// Always true when no language filter is configured or detection is
// inconclusive.
func (c *Client) allowedLanguage(text string) bool {
	if c.detector == nil {
		return true
	}
	sample := text
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	lang, ok := c.detector.DetectLanguageOf(sample)
	if !ok {
		return true
	}
	return strings.EqualFold(lang.IsoCode639_1().String(), c.language)
}

// CleanScrapedText strips boilerplate markup and collapses whitespace.
// HTML input loses script/style/nav/header/footer/form/aside blocks before
// text extraction; plain text is just normalized.
func CleanScrapedText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	text := trimmed
	if strings.Contains(trimmed, "<") && strings.Contains(trimmed, ">") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed)); err == nil {
			doc.Find("script, style, nav, header, footer, form, aside, iframe, noscript").Remove()
			text = doc.Text()
		}
	}

	cleaned := strings.Join(strings.Fields(text), " ")
	if len(cleaned) > maxScrapedLength {
		cleaned = cleaned[:maxScrapedLength]
	}
	return cleaned
}

// isBlockedDomain reports whether the URL's host is on the social
// platform blocklist.
func isBlockedDomain(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	for _, blocked := range blockedDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// titleFromURL derives a readable title from the URL path's last segment.
func titleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return parsed.Hostname()
	}
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	return strings.TrimSpace(last)
}
