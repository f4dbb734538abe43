package chat

import (
	"regexp"
	"strings"

	"github.com/reelwise/reelwise/internal/knowledge"
)

// citationPatterns extract source references from a generated answer.
// Extraction is best-effort: the allow-list filter below is what prevents
// hallucinated citations from surfacing.
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[source:\s*([^\]]+)\]`),
	regexp.MustCompile(`(?i)according to ([^,.\n]+)`),
	regexp.MustCompile(`(?i)based on ([^,.\n]+)`),
	regexp.MustCompile(`(?i)as stated in ([^,.\n]+)`),
	regexp.MustCompile(`(?i)\bfrom ([^,.\n]+)`),
	regexp.MustCompile(`(?i)\bper ([^,.\n]+)`),
}

// extractCitations returns all source references found in the answer.
func extractCitations(answer string) []string {
	var citations []string
	for _, pattern := range citationPatterns {
		for _, match := range pattern.FindAllStringSubmatch(answer, -1) {
			c := strings.TrimSpace(match[1])
			if c != "" {
				citations = append(citations, c)
			}
		}
	}
	return citations
}

// filterCitations maps extracted citations onto the retrieval allow-list.
// A citation matches a source by exact document ID or by title containment
// (either direction, case-insensitive). Unknown citations are dropped.
// Returns matched document IDs, deduplicated, in retrieval order.
func filterCitations(citations []string, sources []knowledge.Result) []string {
	if len(citations) == 0 || len(sources) == 0 {
		return nil
	}

	matched := make(map[string]bool, len(sources))
	for _, c := range citations {
		lower := strings.ToLower(c)
		for _, src := range sources {
			if matched[src.DocumentID] {
				continue
			}
			id := strings.ToLower(src.DocumentID)
			title := strings.ToLower(src.Title)
			if lower == id ||
				(title != "" && (strings.Contains(lower, title) || strings.Contains(title, lower))) {
				matched[src.DocumentID] = true
			}
		}
	}

	var ids []string
	for _, src := range sources {
		if matched[src.DocumentID] {
			ids = append(ids, src.DocumentID)
		}
	}
	return ids
}
