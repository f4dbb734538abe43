package chat

import "strings"

// redirectAnswer is returned for off-topic questions without spending a
// retrieval or LLM call.
const redirectAnswer = "I'm specialized in movie industry topics. Please ask me about " +
	"pre-production, production, or post-production processes, filmmaking " +
	"techniques, industry practices, or any other movie-related questions."

// movieKeywords gate questions to film-industry territory.
// Keyword presence is a deliberately cheap heuristic: false negatives cost
// one redirect message, false positives cost one normal turn.
var movieKeywords = []string{
	"film", "movie", "cinema", "production", "director", "actor", "actress",
	"script", "screenplay", "camera", "editing", "post-production", "pre-production",
	"casting", "location", "budget", "schedule", "crew", "sound", "lighting",
	"visual effects", "color grading", "distribution", "box office",
}

// onTopic reports whether the question appears to be movie-industry related.
func onTopic(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range movieKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
