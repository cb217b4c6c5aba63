package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"blogsmith/internal/llm"
)

// fakeSearcher returns scripted results for both search modes.
type fakeSearcher struct {
	searchResults []string
	rawResults    []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) []string {
	return f.searchResults
}

func (f *fakeSearcher) RawSearch(ctx context.Context, query string, maxResults int) []string {
	return f.rawResults
}

// fakeImages scripts image generation per model.
type fakeImages struct {
	perModel map[string][]string
	failAll  bool
	calls    []string
}

func (f *fakeImages) Generate(ctx context.Context, positive, negative string, count int, model string) ([]string, error) {
	f.calls = append(f.calls, model)
	if f.failAll {
		return nil, errors.New("provider unavailable")
	}
	if urls, ok := f.perModel[model]; ok {
		return urls, nil
	}
	return nil, errors.New("unknown model")
}

func (f *fakeImages) PrimaryModel() string  { return "primary:1" }
func (f *fakeImages) FallbackModel() string { return "fallback:1" }

func newTestEnricher(searcher *fakeSearcher, mock *llm.MockProvider, images *fakeImages) *Enricher {
	if images == nil {
		images = &fakeImages{}
	}
	return NewEnricher(searcher, llm.NewClient(mock), images)
}

func TestFindYouTubeVideoPrefersSearchResults(t *testing.T) {
	searcher := &fakeSearcher{
		rawResults: []string{
			"https://example.com/not-a-video",
			"https://www.youtube.com/watch?v=abc123",
		},
	}
	e := newTestEnricher(searcher, llm.NewMockProvider(), nil)

	got := e.FindYouTubeVideo(context.Background(), "gardening", "how to grow tomatoes")
	if got != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("unexpected video url: %q", got)
	}
}

func TestFindYouTubeVideoValidatesCompletionSuggestion(t *testing.T) {
	searcher := &fakeSearcher{}
	mock := llm.NewMockProvider()
	mock.Respond("YouTube video URL", "https://youtu.be/xyz789")
	e := newTestEnricher(searcher, mock, nil)

	if got := e.FindYouTubeVideo(context.Background(), "topic", ""); got != "https://youtu.be/xyz789" {
		t.Errorf("valid suggestion rejected: %q", got)
	}

	mock2 := llm.NewMockProvider()
	mock2.Respond("YouTube video URL", "check out this great video on youtube somewhere")
	e2 := newTestEnricher(searcher, mock2, nil)

	if got := e2.FindYouTubeVideo(context.Background(), "topic", ""); got != "" {
		t.Errorf("invalid suggestion accepted: %q", got)
	}
}

func TestFindAuthorityLinksTruncates(t *testing.T) {
	searcher := &fakeSearcher{searchResults: []string{"https://a.com", "https://b.com", "https://c.com"}}
	e := newTestEnricher(searcher, llm.NewMockProvider(), nil)

	got := e.FindAuthorityLinks(context.Background(), "topic", 2)
	if len(got) != 2 {
		t.Errorf("expected 2 links, got %d", len(got))
	}
}

func TestExtractYouTubeID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":      "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=10":                "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=PL1&v=abc-123": "abc-123",
		"https://example.com/video":                        "",
	}
	for input, want := range cases {
		if got := ExtractYouTubeID(input); got != want {
			t.Errorf("ExtractYouTubeID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPlaceYouTubeEmbedAfterSecondHeading(t *testing.T) {
	html := `<h1>Title</h1><p>intro</p><h2>Section</h2><p>body</p>`
	out := PlaceYouTubeEmbed(html, "vid123")

	idx := strings.Index(out, "youtube.com/embed/vid123")
	if idx < 0 {
		t.Fatal("embed not inserted")
	}
	if idx < strings.Index(out, "</h2>") {
		t.Error("embed should come after the second heading")
	}
}

func TestPlaceYouTubeEmbedSingleHeading(t *testing.T) {
	html := `<h1>Only</h1><p>body</p>`
	out := PlaceYouTubeEmbed(html, "vid123")
	if !strings.Contains(out, "youtube.com/embed/vid123") {
		t.Error("embed should be placed after the only heading")
	}
}

func TestPlaceYouTubeEmbedNoHeadingsNoOp(t *testing.T) {
	html := `<p>just paragraphs</p>`
	if out := PlaceYouTubeEmbed(html, "vid123"); out != html {
		t.Errorf("expected no-op without headings, got: %s", out)
	}
}

func TestTableTypeSeedDeterministic(t *testing.T) {
	content := "the same article content about widgets"
	a := tableTypeSeed(content)
	b := tableTypeSeed(content)
	if a != b {
		t.Errorf("seed not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a >= len(tableTypes) {
		t.Errorf("seed out of range: %d", a)
	}
}

func TestGenerateDataTablesCleansOutput(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Respond("HTML table", "```html\n<!-- generated -->\n<table class=\"w-full\"><tbody><tr><td>1</td></tr></tbody></table>\n```")
	e := newTestEnricher(&fakeSearcher{}, mock, nil)

	tables := e.GenerateDataTables(context.Background(), "widgets", "content body", 2)
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	for _, table := range tables {
		if strings.Contains(table, "```") || strings.Contains(table, "<!--") {
			t.Errorf("fences or comments survived: %s", table)
		}
		if !strings.HasPrefix(table, "<table") {
			t.Errorf("table should start at the table element: %s", table)
		}
	}
}

func TestGenerateDataTablesSkipsNonTables(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Respond("HTML table", "Sorry, I cannot create a table right now.")
	e := newTestEnricher(&fakeSearcher{}, mock, nil)

	if tables := e.GenerateDataTables(context.Background(), "t", "c", 2); len(tables) != 0 {
		t.Errorf("expected no tables from non-table output, got %d", len(tables))
	}
}

func TestAppendBlockInsertsBeforeFAQ(t *testing.T) {
	body := `<p>intro</p><h2 class="x">Frequently Asked Questions</h2><p>answers</p>`
	out := appendBlock(body, `<table><tr><td>data</td></tr></table>`)

	tableAt := strings.Index(out, "<table")
	faqAt := strings.Index(out, "Frequently Asked")
	if tableAt == -1 || faqAt == -1 || tableAt > faqAt {
		t.Errorf("table should precede the FAQ section: %s", out)
	}
}

func TestAppendBlockWithoutFAQAppendsAtEnd(t *testing.T) {
	out := appendBlock("<p>intro</p>", "<table></table>")
	if !strings.HasSuffix(strings.TrimSpace(out), "<table></table>") {
		t.Errorf("table should be appended at the end: %s", out)
	}
}

func TestGenerateImagesFallsBackToAlternateModel(t *testing.T) {
	images := &fakeImages{perModel: map[string][]string{
		"fallback:1": {"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
	}}
	e := newTestEnricher(&fakeSearcher{}, llm.NewMockProvider(), images)

	urls := e.GenerateImages(context.Background(), "topic", 2)
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	if len(images.calls) != 2 || images.calls[0] != "primary:1" || images.calls[1] != "fallback:1" {
		t.Errorf("expected primary then fallback model, got %v", images.calls)
	}
}

func TestGenerateImagesPlaceholdersOnTotalFailure(t *testing.T) {
	images := &fakeImages{failAll: true}
	e := newTestEnricher(&fakeSearcher{}, llm.NewMockProvider(), images)

	urls := e.GenerateImages(context.Background(), "widgets", 3)
	if len(urls) != 3 {
		t.Fatalf("expected 3 placeholder urls, got %d", len(urls))
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "/placeholder.svg") {
			t.Errorf("expected placeholder url, got %q", u)
		}
	}
}

func TestPlaceImagesAnchoredPlacement(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Respond("placing", `[{"description":"d","insertAfterText":"the anchor sentence.","caption":"A caption"}]`)
	e := newTestEnricher(&fakeSearcher{}, mock, nil)

	html := `<p>Intro text with the anchor sentence.</p><p>More text.</p>`
	out := e.PlaceImages(context.Background(), html, []string{"https://img.example.com/a.jpg"}, "topic")

	if strings.Count(out, "https://img.example.com/a.jpg") != 1 {
		t.Errorf("image should be placed exactly once: %s", out)
	}
	if !strings.Contains(out, "A caption") {
		t.Errorf("caption missing: %s", out)
	}
}

func TestPlaceImagesFallbackPlacesEveryImage(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Respond("placing", `[{"description":"d","insertAfterText":"THIS TEXT DOES NOT EXIST","caption":"c"}]`)
	e := newTestEnricher(&fakeSearcher{}, mock, nil)

	html := `<p>one</p><p>two</p><p>three</p><p>four</p>`
	urls := []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"}
	out := e.PlaceImages(context.Background(), html, urls, "topic")

	for _, u := range urls {
		if strings.Count(out, u) != 1 {
			t.Errorf("image %s should appear exactly once", u)
		}
	}
}

func TestPlaceImagesNoParagraphsStillPlaces(t *testing.T) {
	mock := llm.NewMockProvider()
	e := newTestEnricher(&fakeSearcher{}, mock, nil)

	out := e.PlaceImages(context.Background(), "bare text", []string{"https://img.example.com/z.jpg"}, "t")
	if strings.Count(out, "https://img.example.com/z.jpg") != 1 {
		t.Errorf("image not placed in paragraph-free html: %s", out)
	}
}
