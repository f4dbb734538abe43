package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTMLText strips markup and page chrome from an HTML document and
// returns its readable text with collapsed whitespace.
func extractHTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	sel := doc.Find("body")
	text := sel.Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	// Collapse runs of whitespace but preserve paragraph breaks so the
	// chunker can split on them.
	var b strings.Builder
	for _, para := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(para), " ")
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(line)
	}
	return b.String(), nil
}
