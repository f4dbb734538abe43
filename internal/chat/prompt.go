package chat

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/websearch"
)

// systemInstruction is the fixed movie-industry system prompt.
const systemInstruction = `You are an expert AI assistant specializing in the movie industry.
You have deep knowledge of pre-production, production, and post-production processes.

CRITICAL INSTRUCTIONS TO PREVENT HALLUCINATION:
1. ONLY provide information that is explicitly stated in the provided knowledge base context or web excerpts
2. If information is not in the context, say "I don't have specific information about that in my knowledge base"
3. For budgeting and scheduling questions, be EXTRA careful and only use verified data
4. ALWAYS cite which specific document your information comes from using its [source: <id>] tag
5. If you're uncertain about any detail, express that uncertainty clearly
6. Do not make assumptions or provide information beyond what's in the context

CITATION REQUIREMENTS:
- Cite sources naturally within the text using the [source: <id>] tags from the context
- For web excerpts, name the source and include the URL
- If information is missing, clearly state what you don't know

Your expertise includes:
- Pre-production: Script development, casting, location scouting, budgeting, scheduling
- Production: Filming, directing, cinematography, sound recording, set management
- Post-production: Editing, visual effects, sound mixing, color grading, distribution

If asked about something outside the movie industry, politely redirect the conversation back to film-related topics.`

// excerptMaxRunes caps how much of each retrieved chunk enters the prompt.
const excerptMaxRunes = 500

// buildSystem assembles the system prompt: fixed instruction plus retrieved
// excerpts tagged with their document IDs, plus any web excerpts.
func buildSystem(results []knowledge.Result, webResults []websearch.Result) string {
	var b strings.Builder
	b.WriteString(systemInstruction)

	if len(results) == 0 && len(webResults) == 0 {
		b.WriteString("\n\nNo specific movie industry context found for this question.")
		return b.String()
	}

	if len(results) > 0 {
		b.WriteString("\n\nKnowledge base context:")
		for _, r := range results {
			excerpt := r.Content
			if runes := []rune(excerpt); len(runes) > excerptMaxRunes {
				excerpt = string(runes[:excerptMaxRunes]) + "..."
			}
			fmt.Fprintf(&b, "\n\n[source: %s] %s (%s):\n%s",
				r.DocumentID, r.Title, r.Category, excerpt)
		}
	}

	if len(webResults) > 0 {
		b.WriteString("\n\nCurrent web excerpts:")
		for _, r := range webResults {
			fmt.Fprintf(&b, "\n\n%s (%s):\n%s", r.Title, r.URL, r.Snippet)
		}
	}

	return b.String()
}

// buildMessages converts the last window turns into model messages.
// turns already ends with the current user turn; older turns beyond the
// window are truncated first.
func buildMessages(turns []conversation.Turn, window int) []*ai.Message {
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	messages := make([]*ai.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	return messages
}
