package pipeline

import (
	"context"
	"fmt"
	"strings"

	"blogsmith/internal/core"
	"blogsmith/internal/llm"
)

// similarityVerdict is the completion's judgement of whether a new body
// reads too close to a recent post.
type similarityVerdict struct {
	IsTooSimilar   bool   `json:"isTooSimilar"`
	SimilarToTitle string `json:"similarToTitle"`
}

// checkSimilarity compares the new body against the user's recent posts.
// An unparseable or degraded response counts as not-similar, so the
// guard can only ever add one extra generation, never block publication.
func (p *Pipeline) checkSimilarity(ctx context.Context, body string, bundle *core.ResearchBundle, result *Result) similarityVerdict {
	if len(bundle.ExistingPostTitles) == 0 {
		return similarityVerdict{}
	}

	var sb strings.Builder
	sb.WriteString("Existing posts:\n")
	for i, title := range bundle.ExistingPostTitles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
		if i < len(bundle.ExistingPostBodies) {
			fmt.Fprintf(&sb, "   %s\n", llmExcerpt(bundle.ExistingPostBodies[i], 400))
		}
	}

	prompt := fmt.Sprintf(`Compare the NEW ARTICLE below against the existing posts. Is it substantially covering the same ground as any one of them? Respond with JSON only: {"isTooSimilar": bool, "similarToTitle": "title or empty"}.

%s
NEW ARTICLE:
%s`, sb.String(), llmExcerpt(body, 4000))

	response := p.complete(ctx, StageSimilarity, prompt, 150, result)
	return llm.ParseJSONLenient[similarityVerdict](response, similarityVerdict{})
}
