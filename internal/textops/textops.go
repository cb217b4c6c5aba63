// Package textops provides deterministic text and HTML shaping for
// generated articles. No I/O, no network: every function is a pure
// transformation of its input.
package textops

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"blogsmith/internal/core"
)

// Canonical class attributes applied to rendered article HTML. The editor
// UI expects these exact classes, so sanitization re-applies them.
const (
	classH1         = "font-saira text-5xl font-bold mt-8 mb-6 text-gray-900 border-b pb-2"
	classH2         = "font-saira text-4xl font-bold mt-10 mb-5 text-gray-900"
	classH3         = "font-saira text-3xl font-bold mt-8 mb-4 text-gray-800"
	classH4         = "font-saira text-2xl font-bold mt-7 mb-4 text-gray-800"
	classH5         = "font-saira text-xl font-bold mt-6 mb-3 text-gray-800"
	classH6         = "font-saira text-lg font-bold mt-6 mb-3 text-gray-800"
	classParagraph  = "font-saira text-gray-700 leading-relaxed font-normal my-4"
	classList       = "pl-4 my-4"
	classListItem   = "ml-4 text-gray-700 leading-relaxed font-normal"
	classBlockquote = "border-l-4 border-gray-300 pl-4 italic text-gray-600 my-4 font-saira"
	classExternal   = "text-orange-600 underline hover:text-orange-700 font-saira font-normal transition-colors duration-200"
	classInternal   = "text-blue-600 hover:text-blue-800 font-normal transition-colors duration-200"
	classFigure     = "my-6"
	classFigcaption = "text-sm text-center text-gray-500 mt-2 font-saira"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\s*\(\s*([^)]*?)\s*\)`)

	heading6Re = regexp.MustCompile(`(?m)^###### (.*)$`)
	heading5Re = regexp.MustCompile(`(?m)^##### (.*)$`)
	heading4Re = regexp.MustCompile(`(?m)^#### (.*)$`)
	heading3Re = regexp.MustCompile(`(?m)^### (.*)$`)
	heading2Re = regexp.MustCompile(`(?m)^## (.*)$`)
	heading1Re = regexp.MustCompile(`(?m)^# (.*)$`)

	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+)\*`)
	blockquoteRe = regexp.MustCompile(`(?m)^>\s?(.*)$`)
	bulletRe     = regexp.MustCompile(`(?m)^[-*]\s+(.*)$`)
	listRunRe    = regexp.MustCompile(`(?s)(<li[^>]*>.*?</li>\n?)+`)
	openListRe   = regexp.MustCompile(`(?is)<ul[^>]*>\s*$`)

	tagRe       = regexp.MustCompile(`<[^>]+>`)
	emptyParaRe = regexp.MustCompile(`<p[^>]*>\s*(?:&nbsp;)?\s*</p>`)

	externalLinkCountRe = regexp.MustCompile(`\[[^\]]+\]\(https?://[^)]+\)|<a[^>]*href=["']https?://[^"']+["']`)
	internalLinkCountRe = regexp.MustCompile(`\[[^\]]+\]\(/[^)]*\)|<a[^>]*href=["']/[^"']*["']`)

	faqHeadingRe = regexp.MustCompile(`(?im)^#{1,6}\s.*(faq|frequently asked questions)|<h[1-6][^>]*>[^<]*(FAQ|Frequently Asked Questions)`)

	crlfRe      = regexp.MustCompile(`\r\n`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// FixMarkdownLinks normalizes spacing inside markdown link syntax without
// altering label or URL content. Malformed links are left as written.
func FixMarkdownLinks(text string) string {
	return markdownLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := markdownLinkRe.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		label := strings.TrimSpace(parts[1])
		url := strings.TrimSpace(parts[2])
		return fmt.Sprintf("[%s](%s)", label, url)
	})
}

// linksToHTML converts markdown links to styled anchors. Internal links
// (paths starting with "/") and external links get distinct classes; the
// external variant opens in a new tab.
func linksToHTML(text string) string {
	return markdownLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := markdownLinkRe.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		label := strings.TrimSpace(parts[1])
		url := strings.TrimSpace(parts[2])
		switch {
		case strings.HasPrefix(url, "/"):
			return fmt.Sprintf(`<a href="%s" class="%s">%s</a>`, url, classInternal, label)
		case strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://"):
			return fmt.Sprintf(`<a href="%s" class="%s" target="_blank" rel="noopener noreferrer">%s</a>`, url, classExternal, label)
		default:
			// Unknown scheme: keep the label only rather than emit a dead link.
			return label
		}
	})
}

// MarkdownToHTML converts the pipeline's markdown dialect (headings,
// bold/italic, bullet lists, blockquotes, links) to styled HTML. Malformed
// markdown never fails; output is best effort. Blocks that already look
// like HTML pass through untouched, so running the converter twice does
// not restructure headings or lists.
func MarkdownToHTML(markdown string) string {
	html := linksToHTML(FixMarkdownLinks(markdown))

	html = crlfRe.ReplaceAllString(html, "\n")
	html = blankRunsRe.ReplaceAllString(html, "\n\n")

	html = heading6Re.ReplaceAllString(html, `<h6 class="`+classH6+`">$1</h6>`)
	html = heading5Re.ReplaceAllString(html, `<h5 class="`+classH5+`">$1</h5>`)
	html = heading4Re.ReplaceAllString(html, `<h4 class="`+classH4+`">$1</h4>`)
	html = heading3Re.ReplaceAllString(html, `<h3 class="`+classH3+`">$1</h3>`)
	html = heading2Re.ReplaceAllString(html, `<h2 class="`+classH2+`">$1</h2>`)
	html = heading1Re.ReplaceAllString(html, `<h1 class="`+classH1+`">$1</h1>`)

	html = boldRe.ReplaceAllString(html, `<strong class="font-bold">$1</strong>`)
	html = italicRe.ReplaceAllString(html, `<em class="italic font-normal">$1</em>`)

	html = blockquoteRe.ReplaceAllString(html, `<blockquote class="`+classBlockquote+`">$1</blockquote>`)
	html = bulletRe.ReplaceAllString(html, `<li class="`+classListItem+`">$1</li>`)
	html = wrapListRuns(html)

	html = wrapParagraphs(html)
	return RemoveEmptyParagraphs(html)
}

// wrapListRuns wraps consecutive <li> elements in a styled <ul>, skipping
// runs that already sit inside an open <ul> so re-converting rendered HTML
// does not nest duplicate lists.
func wrapListRuns(html string) string {
	matches := listRunRe.FindAllStringIndex(html, -1)
	if len(matches) == 0 {
		return html
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(html[last:m[0]])
		run := html[m[0]:m[1]]
		if openListRe.MatchString(html[:m[0]]) {
			b.WriteString(run)
		} else {
			b.WriteString(`<ul class="` + classList + `">` + run + `</ul>`)
		}
		last = m[1]
	}
	b.WriteString(html[last:])
	return b.String()
}

// wrapParagraphs wraps bare text blocks in styled paragraph tags, leaving
// blocks that are already block-level HTML alone.
func wrapParagraphs(html string) string {
	blocks := strings.Split(html, "\n\n")
	var out []string
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "<") && !strings.HasPrefix(trimmed, "<strong") && !strings.HasPrefix(trimmed, "<em") && !strings.HasPrefix(trimmed, "<a ") {
			out = append(out, trimmed)
			continue
		}
		out = append(out, fmt.Sprintf(`<p class="%s">%s</p>`, classParagraph, trimmed))
	}
	return strings.Join(out, "\n")
}

// canonicalClasses maps block-level tags to the class attribute the
// editor UI expects on each.
var canonicalClasses = map[string]string{
	"h1": classH1, "h2": classH2, "h3": classH3,
	"h4": classH4, "h5": classH5, "h6": classH6,
	"p": classParagraph, "ul": classList, "li": classListItem,
	"blockquote": classBlockquote,
	"figure":     classFigure, "figcaption": classFigcaption,
}

// SanitizeHTML strips script tags, javascript: URLs, and inline event
// handlers, then re-applies the canonical class attributes so rendering
// stays consistent regardless of what the generation stages produced.
func SanitizeHTML(html string) string {
	prepared := linksToHTML(FixMarkdownLinks(html))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(prepared))
	if err != nil {
		return RemoveEmptyParagraphs(prepared)
	}

	doc.Find("script").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, key := range attrKeys(s) {
			if strings.HasPrefix(strings.ToLower(key), "on") {
				s.RemoveAttr(key)
			}
		}
		for _, key := range []string{"href", "src"} {
			if val, ok := s.Attr(key); ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "javascript:") {
				s.SetAttr(key, "#")
			}
		}
	})

	for tag, class := range canonicalClasses {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			for _, key := range attrKeys(s) {
				if key != "id" {
					s.RemoveAttr(key)
				}
			}
			s.SetAttr("class", class)
		})
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch {
		case strings.HasPrefix(href, "/"):
			s.SetAttr("class", classInternal)
		case strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://"):
			s.SetAttr("class", classExternal)
			s.SetAttr("target", "_blank")
			s.SetAttr("rel", "noopener noreferrer")
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return RemoveEmptyParagraphs(prepared)
	}
	return RemoveEmptyParagraphs(out)
}

// attrKeys snapshots a node's attribute names so they can be removed
// while iterating.
func attrKeys(s *goquery.Selection) []string {
	if len(s.Nodes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Nodes[0].Attr))
	for _, attr := range s.Nodes[0].Attr {
		keys = append(keys, attr.Key)
	}
	return keys
}

// ExtractTOC assigns deterministic sequential ids (heading-0, heading-1,
// ...) to every heading in document order and returns the rewritten HTML
// together with the table of contents. Same input always yields the same
// ids.
func ExtractTOC(html string) (string, []core.Heading) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html, nil
	}

	var headings []core.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		id := fmt.Sprintf("heading-%d", i)
		s.SetAttr("id", id)
		headings = append(headings, core.Heading{
			ID:    id,
			Text:  strings.TrimSpace(s.Text()),
			Level: int(name[1] - '0'),
		})
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return html, headings
	}
	return out, headings
}

// CountWords strips tags and counts whitespace-separated tokens.
func CountWords(text string) int {
	plain := tagRe.ReplaceAllString(text, " ")
	return len(strings.Fields(plain))
}

// StripTags removes HTML tags and collapses the remaining whitespace.
func StripTags(html string) string {
	plain := tagRe.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// RemoveEmptyParagraphs drops paragraph tags with no visible content.
func RemoveEmptyParagraphs(html string) string {
	return emptyParaRe.ReplaceAllString(html, "")
}

// RemoveLeadingColons cleans stray leading colons that completion output
// sometimes carries at line starts.
func RemoveLeadingColons(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, ": ") {
			lines[i] = strings.TrimPrefix(trimmed, ": ")
		}
	}
	return strings.Join(lines, "\n")
}

// HasFAQSection reports whether the content already contains an FAQ
// heading, in markdown or HTML form.
func HasFAQSection(content string) bool {
	return faqHeadingRe.MatchString(content)
}

// CountExternalLinks counts markdown and anchor links pointing at
// http(s) URLs.
func CountExternalLinks(content string) int {
	return len(externalLinkCountRe.FindAllString(content, -1))
}

// CountInternalLinks counts markdown and anchor links pointing at
// site-relative paths.
func CountInternalLinks(content string) int {
	return len(internalLinkCountRe.FindAllString(content, -1))
}
