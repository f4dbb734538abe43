package knowledge

import "strings"

// Chunker splits document text into word-bounded chunks for embedding.
// Embedding models degrade on very long inputs, so documents are stored
// as multiple chunks that are retrieved independently.
type Chunker struct {
	words int
}

// NewChunker creates a chunker that emits chunks of at most words words.
// Non-positive values fall back to 400.
func NewChunker(words int) *Chunker {
	if words <= 0 {
		words = 400
	}
	return &Chunker{words: words}
}

// Split breaks content into chunks. Paragraph boundaries are preserved
// where possible: paragraphs are packed into a chunk until the word
// budget is exceeded, and a single oversized paragraph is split on
// word boundaries.
//
// Whitespace-only content yields no chunks.
func (c *Chunker) Split(content string) []string {
	paragraphs := strings.Split(content, "\n\n")

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentWords = 0
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		words := strings.Fields(p)
		if len(words) > c.words {
			// Oversized paragraph: flush what we have, then split on words
			flush()
			for start := 0; start < len(words); start += c.words {
				end := min(start+c.words, len(words))
				chunks = append(chunks, strings.Join(words[start:end], " "))
			}
			continue
		}

		if currentWords+len(words) > c.words {
			flush()
		}
		current = append(current, p)
		currentWords += len(words)
	}
	flush()

	return chunks
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
