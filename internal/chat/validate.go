package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reelwise/reelwise/internal/knowledge"
)

// Validation summarizes how well an answer is grounded in its sources.
type Validation struct {
	IsValid          bool     `json:"is_valid"`
	ConfidenceScore  float64  `json:"confidence_score"`
	SourceCoverage   float64  `json:"source_coverage"`
	Warnings         []string `json:"warnings,omitempty"`
	UnverifiedClaims []string `json:"unverified_claims,omitempty"`
}

var (
	budgetKeywords = []string{
		"budget", "cost", "price", "expense", "financial", "money", "dollar",
		"funding", "investment", "estimate", "quotation", "rate", "fee",
	}
	schedulingKeywords = []string{
		"schedule", "timeline", "deadline", "duration", "week",
		"month", "day", "hour", "milestone", "phase", "stage",
	}

	// definitivePatterns flag specific figures that need a nearby citation.
	definitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)the cost is (\$[\d,]+)`),
		regexp.MustCompile(`(?i)the budget is (\$[\d,]+)`),
		regexp.MustCompile(`(?i)it takes (\d+ [a-z]+)`),
		regexp.MustCompile(`(?i)(\d+) percent of`),
		regexp.MustCompile(`(?i)(\d+) days to complete`),
		regexp.MustCompile(`(?i)(\d+) weeks for`),
	}

	// vaguePatterns flag generalizations that read like unsourced figures.
	vaguePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)typically costs`),
		regexp.MustCompile(`(?i)usually takes`),
		regexp.MustCompile(`(?i)generally requires`),
		regexp.MustCompile(`(?i)industry average`),
	}
)

// validateAnswer scores the answer against the retrieval sources.
// citedIDs is the already-filtered citation list for the answer.
func validateAnswer(answer string, sources []knowledge.Result, citedIDs []string, question string) *Validation {
	v := &Validation{}

	uniqueDocs := make(map[string]bool, len(sources))
	for _, s := range sources {
		uniqueDocs[s.DocumentID] = true
	}
	if len(uniqueDocs) > 0 {
		v.SourceCoverage = float64(len(citedIDs)) / float64(len(uniqueDocs))
	}

	if len(sources) > 0 && len(citedIDs) == 0 {
		v.Warnings = append(v.Warnings, "response contains no source citations")
	}

	for _, pattern := range definitivePatterns {
		for _, match := range pattern.FindAllStringSubmatch(answer, -1) {
			v.UnverifiedClaims = append(v.UnverifiedClaims, "specific figure: "+match[1])
		}
	}

	if isBudgetOrSchedulingQuestion(question) {
		for _, pattern := range vaguePatterns {
			if pattern.MatchString(answer) {
				v.Warnings = append(v.Warnings, "response contains potentially unsourced generalizations")
				break
			}
		}
	}

	v.ConfidenceScore = confidenceScore(v)
	v.IsValid = v.ConfidenceScore >= 0.7 && len(v.Warnings) < 3
	return v
}

func isBudgetOrSchedulingQuestion(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range budgetKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range schedulingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// confidenceScore starts at 1.0 and deducts for warnings and unverified
// claims, with a coverage bonus or penalty. Clamped to [0, 1].
func confidenceScore(v *Validation) float64 {
	score := 1.0
	score -= float64(len(v.Warnings)) * 0.1
	score -= float64(len(v.UnverifiedClaims)) * 0.15

	switch {
	case v.SourceCoverage > 0.8:
		score += 0.1
	case v.SourceCoverage < 0.3:
		score -= 0.2
	}

	return max(0.0, min(1.0, score))
}

// Summary renders the validation result for human readers.
func (v *Validation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confidence Score: %.0f%%\n", v.ConfidenceScore*100)

	if len(v.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	if len(v.UnverifiedClaims) > 0 {
		b.WriteString("\nUnverified Claims:\n")
		for _, c := range v.UnverifiedClaims {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String()
}
