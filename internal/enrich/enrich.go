// Package enrich decorates generated articles with media: video embeds,
// authority links, data tables, and images. Every operation degrades to a
// usable default instead of failing, matching the rest of the pipeline.
package enrich

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"blogsmith/internal/core"
	"blogsmith/internal/llm"
)

// Searcher is the slice of the research client the enricher needs.
type Searcher interface {
	Search(ctx context.Context, query string) []string
	RawSearch(ctx context.Context, query string, maxResults int) []string
}

// ImageGenerator produces image URLs for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, positivePrompt, negativePrompt string, count int, model string) ([]string, error)
	PrimaryModel() string
	FallbackModel() string
}

// Enricher finds and places media for an article.
type Enricher struct {
	searcher    Searcher
	completions *llm.Client
	images      ImageGenerator
}

// NewEnricher wires the enricher's collaborators.
func NewEnricher(searcher Searcher, completions *llm.Client, images ImageGenerator) *Enricher {
	return &Enricher{searcher: searcher, completions: completions, images: images}
}

var youtubeURLRe = regexp.MustCompile(`^https?://(?:www\.)?(?:youtube\.com/watch\?[^\s]*v=[\w-]+[^\s]*|youtu\.be/[\w-]+[^\s]*)$`)

// FindYouTubeVideo looks for a relevant video: first through search with
// a YouTube-biased query, then by asking the completion client for a URL.
// A completion-suggested URL is accepted only if it matches the YouTube
// URL pattern; otherwise returns "". Never fabricates an unvalidated URL.
func (e *Enricher) FindYouTubeVideo(ctx context.Context, topic, contentExcerpt string) string {
	excerpt := contentExcerpt
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}

	query := fmt.Sprintf("best youtube video about %s %s", topic, excerpt)
	for _, candidate := range e.searcher.RawSearch(ctx, query, 5) {
		if isYouTubeWatchURL(candidate) {
			return candidate
		}
	}

	prompt := fmt.Sprintf(`Suggest one real, popular YouTube video URL about "%s". Respond with the URL only, nothing else.`, topic)
	suggestion, warn := e.completions.Complete(ctx, prompt, 100)
	if warn != nil {
		return ""
	}
	suggestion = strings.TrimSpace(strings.Split(suggestion, "\n")[0])
	if youtubeURLRe.MatchString(suggestion) {
		return suggestion
	}

	return ""
}

func isYouTubeWatchURL(candidate string) bool {
	return strings.Contains(candidate, "youtube.com/watch") || strings.Contains(candidate, "youtu.be/")
}

// FindAuthorityLinks returns up to count authoritative source URLs for
// the topic.
func (e *Enricher) FindAuthorityLinks(ctx context.Context, topic string, count int) []string {
	urls := e.searcher.Search(ctx, fmt.Sprintf("authoritative guide %s statistics research", topic))
	if len(urls) > count {
		urls = urls[:count]
	}
	return urls
}

// ExtractYouTubeID pulls the video id out of a watch or short URL.
// Returns "" when no id is present.
func ExtractYouTubeID(rawURL string) string {
	if strings.Contains(rawURL, "youtube.com/watch") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return ""
		}
		return parsed.Query().Get("v")
	}
	if idx := strings.Index(rawURL, "youtu.be/"); idx >= 0 {
		id := rawURL[idx+len("youtu.be/"):]
		if q := strings.IndexAny(id, "?&"); q >= 0 {
			id = id[:q]
		}
		return id
	}
	return ""
}

var headingCloseRe = regexp.MustCompile(`(?i)</h[1-6]>`)

// PlaceYouTubeEmbed inserts a responsive iframe after the second heading
// when one exists, else after the first, else leaves the HTML untouched.
func PlaceYouTubeEmbed(html, videoID string) string {
	if videoID == "" {
		return html
	}

	locs := headingCloseRe.FindAllStringIndex(html, 2)
	if len(locs) == 0 {
		return html
	}
	insertAt := locs[len(locs)-1][1]

	embed := fmt.Sprintf(`
<div class="relative my-8 w-full pt-[56.25%%]">
  <iframe class="absolute top-0 left-0 w-full h-full rounded-lg shadow-md" src="https://www.youtube.com/embed/%s" title="YouTube video player" frameborder="0" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe>
</div>
`, videoID)

	return html[:insertAt] + embed + html[insertAt:]
}

// imagePlacement is the completion's proposal for where one image goes.
type imagePlacement struct {
	Description     string `json:"description"`
	InsertAfterText string `json:"insertAfterText"`
	Caption         string `json:"caption"`
}

// PlaceImages inserts every supplied image URL into the HTML exactly
// once. The completion client proposes anchor substrings; proposals whose
// anchor text is not found verbatim fall back to insertion after evenly
// spaced paragraphs.
func (e *Enricher) PlaceImages(ctx context.Context, html string, imageURLs []string, topic string) string {
	if len(imageURLs) == 0 {
		return html
	}

	excerpt := html
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	prompt := fmt.Sprintf(`You are placing %d images into a blog article about "%s". For each image, pick a short EXACT substring from the article text that the image should appear after, and write a caption. Respond with a JSON array of objects with keys "description", "insertAfterText" (copied verbatim from the article), and "caption". JSON only.

Article:
%s`, len(imageURLs), topic, excerpt)

	response, _ := e.completions.Complete(ctx, prompt, 600)
	placements := llm.ParseJSONLenient[[]imagePlacement](response, nil)

	var leftovers []placedImage
	out := html
	for i, imageURL := range imageURLs {
		caption := fmt.Sprintf("Illustration related to %s", topic)
		anchored := false

		if i < len(placements) {
			p := placements[i]
			if p.Caption != "" {
				caption = p.Caption
			}
			if p.InsertAfterText != "" {
				if idx := strings.Index(out, p.InsertAfterText); idx >= 0 {
					insertAt := idx + len(p.InsertAfterText)
					// Extend to the end of the enclosing tag when the anchor
					// lands inside one, so the figure is not injected mid-element.
					if end := strings.Index(out[insertAt:], ">"); end >= 0 && end < 200 && strings.Contains(out[insertAt:insertAt+end+1], "</") {
						insertAt += end + 1
					}
					out = out[:insertAt] + figureHTML(imageURL, caption) + out[insertAt:]
					anchored = true
				}
			}
		}

		if !anchored {
			leftovers = append(leftovers, placedImage{url: imageURL, caption: caption})
		}
	}

	if len(leftovers) > 0 {
		out = insertAtRegularIntervals(out, leftovers)
	}
	return out
}

type placedImage struct {
	url     string
	caption string
}

var paragraphCloseRe = regexp.MustCompile(`(?i)</p>`)

// insertAtRegularIntervals spreads images across the article by inserting
// each after an evenly spaced paragraph. With no paragraphs at all the
// images are appended at the end, so every image is still placed.
func insertAtRegularIntervals(html string, images []placedImage) string {
	locs := paragraphCloseRe.FindAllStringIndex(html, -1)
	if len(locs) == 0 {
		var sb strings.Builder
		sb.WriteString(html)
		for _, img := range images {
			sb.WriteString(figureHTML(img.url, img.caption))
		}
		return sb.String()
	}

	interval := len(locs) / (len(images) + 1)
	if interval == 0 {
		interval = 1
	}

	out := html
	// Insert back to front so earlier offsets stay valid.
	for i := len(images) - 1; i >= 0; i-- {
		target := (i + 1) * interval
		if target >= len(locs) {
			target = len(locs) - 1
		}
		insertAt := locs[target][1]
		out = out[:insertAt] + figureHTML(images[i].url, images[i].caption) + out[insertAt:]
	}
	return out
}

func figureHTML(imageURL, caption string) string {
	return fmt.Sprintf(`
<figure class="my-6">
  <img src="%s" alt="%s" class="w-full rounded-lg" loading="lazy" />
  <figcaption class="text-sm text-center text-gray-500 mt-2 font-saira">%s</figcaption>
</figure>
`, imageURL, caption, caption)
}

// EnrichMedia runs the full media pass for one article: video embed,
// data tables appended before any FAQ section, and generated images.
// Every sub-step is best effort.
func (e *Enricher) EnrichMedia(ctx context.Context, html string, bundle *core.ResearchBundle, imageCount, tableCount int) string {
	out := html

	videoURL := bundle.YouTubeURL
	if videoURL == "" {
		videoURL = e.FindYouTubeVideo(ctx, bundle.CoreTopic, llmExcerpt(html))
	}
	if id := ExtractYouTubeID(videoURL); id != "" {
		out = PlaceYouTubeEmbed(out, id)
	}

	for _, table := range e.GenerateDataTables(ctx, bundle.CoreTopic, html, tableCount) {
		out = appendBlock(out, table)
	}

	if imageCount > 0 {
		imageURLs := e.GenerateImages(ctx, bundle.CoreTopic, imageCount)
		out = e.PlaceImages(ctx, out, imageURLs, bundle.CoreTopic)
	}

	return out
}

var faqHeadingTagRe = regexp.MustCompile(`(?i)<h[1-6][^>]*>[^<]*(?:FAQ|Frequently Asked Questions)`)

// appendBlock attaches a block of HTML to the article body. When the body
// ends in an FAQ section the block goes in front of it; otherwise it goes
// at the end.
func appendBlock(html, block string) string {
	if loc := faqHeadingTagRe.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + strings.TrimSpace(block) + "\n" + html[loc[0]:]
	}
	return strings.TrimRight(html, "\n") + "\n" + strings.TrimSpace(block) + "\n"
}

func llmExcerpt(text string) string {
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
