package enrich

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"blogsmith/internal/llm"
	"blogsmith/internal/logger"
)

// tableTypes are the archetypes a generated data table can take. The
// archetype is selected from a hash of the content so repeated runs over
// identical content pick the same tables.
var tableTypes = []string{"comparison", "statistics", "timeline", "pros_cons", "features"}

var htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

// tableTypeSeed derives a stable archetype index from the content bytes.
func tableTypeSeed(content string) int {
	sample := content
	if len(sample) > 200 {
		sample = sample[:200]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sample))
	return int(h.Sum32() % uint32(len(tableTypes)))
}

// GenerateDataTables asks the completion client to fill in up to count
// HTML data tables for the article. Table archetypes are chosen
// deterministically from the content hash; the second type is offset so
// the two tables never share an archetype. Results that do not contain a
// table element are dropped.
func (e *Enricher) GenerateDataTables(ctx context.Context, topic, content string, count int) []string {
	if count <= 0 {
		return nil
	}
	if count > len(tableTypes) {
		count = len(tableTypes)
	}

	seed := tableTypeSeed(content)
	var tables []string
	for i := 0; i < count; i++ {
		// Offset by 2 keeps consecutive tables on different archetypes.
		tableType := tableTypes[(seed+2*i)%len(tableTypes)]

		prompt := fmt.Sprintf(`Create one %s HTML table about "%s" for a blog article. Requirements:
- Use <table class="w-full border-collapse my-6">, <thead>, <tbody>, <th class="border px-4 py-2 bg-gray-100 text-left">, <td class="border px-4 py-2">
- 3 to 5 columns, 4 to 6 rows of realistic data relevant to the topic
- Output the HTML table only, no markdown fences, no commentary

Article context:
%s`, tableType, topic, excerptFor(content, 1500))

		response, warn := e.completions.Complete(ctx, prompt, 900)
		if warn != nil {
			logger.Warn("table generation degraded, skipping table", "type", tableType)
			continue
		}

		cleaned := CleanTableHTML(response)
		if !strings.Contains(cleaned, "<table") {
			logger.Debug("table generation returned no table element", "type", tableType)
			continue
		}
		tables = append(tables, cleaned)
	}

	return tables
}

// CleanTableHTML strips code fences and HTML comments around a generated
// table and trims anything before the table element itself.
func CleanTableHTML(tableHTML string) string {
	cleaned := llm.StripCodeFences(tableHTML)
	cleaned = htmlCommentRe.ReplaceAllString(cleaned, "")
	if start := strings.Index(cleaned, "<table"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "</table>"); end >= 0 {
		cleaned = cleaned[:end+len("</table>")]
	}
	return strings.TrimSpace(cleaned)
}

func excerptFor(content string, max int) string {
	if len(content) > max {
		return content[:max]
	}
	return content
}
