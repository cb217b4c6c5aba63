package pipeline

import (
	"context"
	"fmt"
	"strings"

	"blogsmith/internal/core"
	"blogsmith/internal/llm"
)

// selectTitle generates candidate titles and picks one with a
// deterministic score, so the choice among candidates is reproducible.
func (p *Pipeline) selectTitle(ctx context.Context, bundle *core.ResearchBundle, body string, result *Result) string {
	response := p.complete(ctx, StageFinalizeHTML, fmt.Sprintf(
		`Suggest 5 compelling SEO titles for this article about "%s". Respond with a JSON array of strings only.

%s`, bundle.CoreTopic, llmExcerpt(body, 2000),
	), 250, result)

	candidates := llm.ParseJSONLenient[[]string](response, nil)
	best := selectBestTitle(candidates, bundle.CoreTopic)
	if best != "" {
		return best
	}
	return fallbackTitle(bundle.CoreTopic)
}

// selectBestTitle scores candidates on topic mention, length band and
// simple style signals. Ties go to the earlier candidate.
func selectBestTitle(candidates []string, topic string) string {
	best := ""
	bestScore := -1

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(strings.Trim(candidate, `"'`))
		if candidate == "" {
			continue
		}
		score := scoreTitle(candidate, topic)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

func scoreTitle(title, topic string) int {
	score := 0
	lower := strings.ToLower(title)

	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if len(word) > 3 && strings.Contains(lower, word) {
			score += 2
		}
	}

	length := len(title)
	switch {
	case length >= 40 && length <= 70:
		score += 3
	case length >= 30 && length <= 80:
		score += 1
	}

	if strings.Contains(title, ":") {
		score--
	}
	if strings.ContainsAny(title, `"!`) {
		score--
	}
	return score
}

func fallbackTitle(topic string) string {
	if topic == "" {
		return "Untitled Article"
	}
	words := strings.Fields(topic)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return fmt.Sprintf("The Complete Guide to %s", strings.Join(words, " "))
}
