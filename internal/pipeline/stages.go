package pipeline

import (
	"context"
	"fmt"
	"strings"

	"blogsmith/internal/core"
	"blogsmith/internal/textops"
)

// generateBody runs the drafting and repair stages and returns the
// article body as markdown. Every provider failure degrades to fallback
// text recorded in result; this function never fails outright.
func (p *Pipeline) generateBody(ctx context.Context, bundle *core.ResearchBundle, level core.HumanizeLevel, result *Result) string {
	draft1 := p.complete(ctx, StageDraftPart1, p.draftPrompt(bundle, 1), 2200, result)
	draft2 := p.complete(ctx, StageDraftPart2, p.draftPrompt(bundle, 2), 2200, result)

	merged := p.complete(ctx, StageMerge, mergePrompt(draft1, draft2), 4500, result)
	if isFallback(merged) {
		// With the merge call degraded the two drafts joined directly
		// are still a complete article.
		merged = draft1 + "\n\n" + draft2
	}

	checked := p.complete(ctx, StageFactCheck, factCheckPrompt(merged, bundle), 4500, result)
	if isFallback(checked) {
		checked = merged
	}

	formatted := p.complete(ctx, StageFormat, formatPrompt(checked), 4500, result)
	if isFallback(formatted) {
		formatted = checked
	}

	deduped := p.complete(ctx, StageDeduplicate, dedupePrompt(formatted), 4500, result)
	if isFallback(deduped) {
		deduped = formatted
	}

	body := p.ensureFAQ(ctx, deduped, bundle, result)
	body = p.ensureLinkDensity(ctx, body, bundle, result)

	humanized := p.complete(ctx, StageHumanize, humanizePrompt(body, level), 4500, result)
	if isFallback(humanized) {
		humanized = body
	}

	humanized = textops.RemoveLeadingColons(humanized)
	humanized = textops.FixMarkdownLinks(humanized)
	return strings.TrimSpace(humanized)
}

// ensureFAQ is check-then-patch: the deterministic check decides, the
// completion only writes the patch.
func (p *Pipeline) ensureFAQ(ctx context.Context, body string, bundle *core.ResearchBundle, result *Result) string {
	if textops.HasFAQSection(body) {
		return body
	}

	faq := p.complete(ctx, StageEnsureFAQ, fmt.Sprintf(
		`Write a markdown FAQ section for an article about "%s". Start with the heading "## Frequently Asked Questions" and include 4 to 6 question-and-answer pairs, each question as a "### " heading. Output the section only.`,
		bundle.CoreTopic,
	), 1200, result)
	if isFallback(faq) || !strings.Contains(faq, "#") {
		return body
	}
	return body + "\n\n" + strings.TrimSpace(faq)
}

// ensureLinkDensity patches in links only when the deterministic counts
// fall below the configured floors.
func (p *Pipeline) ensureLinkDensity(ctx context.Context, body string, bundle *core.ResearchBundle, result *Result) string {
	externalShort := p.config.ExternalLinkFloor - textops.CountExternalLinks(body)
	internalShort := p.config.InternalLinkFloor - textops.CountInternalLinks(body)
	if externalShort <= 0 && internalShort <= 0 {
		return body
	}

	var needs []string
	if externalShort > 0 {
		needs = append(needs, fmt.Sprintf("%d more external links chosen from: %s",
			externalShort, strings.Join(candidateList(bundle.ExternalReferences, sourceURLs(bundle)), ", ")))
	}
	if internalShort > 0 {
		needs = append(needs, fmt.Sprintf("%d more internal links chosen from: %s",
			internalShort, strings.Join(bundle.InternalLinks, ", ")))
	}

	patched := p.complete(ctx, StageEnsureLinks, fmt.Sprintf(
		`This markdown article needs %s. Weave the links naturally into existing sentences as [text](url) markdown links. Keep every word, heading and existing link unchanged. Return the full article.

%s`, strings.Join(needs, " and "), body,
	), 4500, result)
	if isFallback(patched) {
		return body
	}
	return patched
}

func (p *Pipeline) draftPrompt(bundle *core.ResearchBundle, part int) string {
	target := p.config.DraftWordTarget
	externalPerDraft := (p.config.ExternalLinkFloor + 1) / 2
	internalPerDraft := (p.config.InternalLinkFloor + 1) / 2

	keywords := splitHalf(keywordList(bundle), part)
	sources := splitHalfSources(bundle.Sources, part)

	tone := "Practical and instructional: concrete steps, specific numbers, actionable advice."
	coverage := "Cover the fundamentals and the how-to aspects of the topic."
	if part == 2 {
		tone = "Narrative and analytical: context, trends, expert perspective, real-world stories."
		coverage = "Cover the deeper analysis, comparisons and future outlook. Do not re-explain the basics."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write part %d of 2 of a long-form blog article about %q.\n\n", part, bundle.CoreTopic)
	fmt.Fprintf(&sb, "Tone: %s\n%s\n\n", tone, coverage)
	fmt.Fprintf(&sb, "Length: between %d and %d words.\n", target*7/10, target*13/10)
	fmt.Fprintf(&sb, "Use markdown: ## and ### headings, bullet lists where useful.\n")
	fmt.Fprintf(&sb, "Include at least %d external links from this list as [text](url): %s\n",
		externalPerDraft, strings.Join(candidateList(bundle.ExternalReferences, sourceURLs(bundle)), ", "))
	fmt.Fprintf(&sb, "Include at least %d internal links from this list as [text](url): %s\n",
		internalPerDraft, strings.Join(bundle.InternalLinks, ", "))
	if len(keywords) > 0 {
		fmt.Fprintf(&sb, "Work in these keywords naturally: %s\n", strings.Join(keywords, ", "))
	}
	if bundle.BrandInfo != "" {
		fmt.Fprintf(&sb, "Brand context: %s\n", bundle.BrandInfo)
	}
	if bundle.DiversityNudge != "" {
		fmt.Fprintf(&sb, "%s\n", bundle.DiversityNudge)
	}
	sb.WriteString("\nResearch material:\n")
	for _, source := range sources {
		fmt.Fprintf(&sb, "- %s: %s\n", source.URL, llmExcerpt(source.RawContent, 800))
	}
	if len(sources) == 0 {
		sb.WriteString(llmExcerpt(bundle.CombinedSummary, 3000))
	}
	return sb.String()
}

func mergePrompt(draft1, draft2 string) string {
	return fmt.Sprintf(`Combine these two article parts into one coherent article. Preserve every word of both parts; add bridging sentences and transitions where needed. Do NOT summarize, shorten or remove anything. Return the full merged article in markdown.

PART 1:
%s

PART 2:
%s`, draft1, draft2)
}

func factCheckPrompt(body string, bundle *core.ResearchBundle) string {
	return fmt.Sprintf(`Cross-check this article against the source URLs below. Keep every existing word; you may only append short clarifying sentences where a claim needs nuance. Return the full article in markdown.

Sources: %s

Article:
%s`, strings.Join(sourceURLs(bundle), ", "), body)
}

func formatPrompt(body string) string {
	return fmt.Sprintf(`Reformat this article to clean markdown: a single # title-level heading at most, ## for sections, ### for subsections, - for bullets, [text](url) for links. Do not change any wording. Return the full article.

%s`, body)
}

func dedupePrompt(body string) string {
	return fmt.Sprintf(`Remove near-duplicate sentences from this article while keeping its structure, every heading and every link intact. Only delete clear repetition. Return the full article in markdown.

%s`, body)
}

func humanizePrompt(body string, level core.HumanizeLevel) string {
	register := "Rewrite in a casual, conversational tone. Use contractions, direct address and the occasional rhetorical question."
	if level == core.HumanizeHardcore {
		register = "Rewrite in a very casual, punchy, opinionated tone. Short sentences. Slang is fine. Sound like a person ranting to a friend, not a content writer."
	}
	return fmt.Sprintf(`%s Preserve every heading, list and [text](url) link exactly. Return the full article in markdown.

%s`, register, body)
}

// isFallback reports whether a completion degraded to the fallback
// string and should not replace the previous stage's output.
func isFallback(text string) bool {
	return strings.HasPrefix(text, "Fallback:") || strings.TrimSpace(text) == ""
}

func keywordList(bundle *core.ResearchBundle) []string {
	var keywords []string
	keywords = append(keywords, bundle.TargetKeywords...)
	for _, extracted := range bundle.ExtractedKeywords {
		keywords = append(keywords, extracted.Keyword)
	}
	return keywords
}

// splitHalf gives part 1 the first half of the slice and part 2 the
// rest, so the two drafts work from disjoint material.
func splitHalf(values []string, part int) []string {
	mid := (len(values) + 1) / 2
	if part == 1 {
		return values[:mid]
	}
	return values[mid:]
}

func splitHalfSources(sources []core.ResearchSource, part int) []core.ResearchSource {
	mid := (len(sources) + 1) / 2
	if part == 1 {
		return sources[:mid]
	}
	return sources[mid:]
}

// candidateList merges curated authority links with scraped source URLs,
// deduplicated, capped to keep prompts bounded.
func candidateList(primary, secondary []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, url := range append(append([]string{}, primary...), secondary...) {
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
		if len(out) >= 12 {
			break
		}
	}
	return out
}
