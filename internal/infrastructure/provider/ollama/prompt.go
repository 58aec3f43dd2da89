package ollama

import (
	"fmt"
	"strings"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

func buildClassificationPrompt(req domain.ClassificationRequest) string {
	var b strings.Builder

	b.WriteString("You are a content classifier. Assign the content below to exactly one category.\n")
	b.WriteString("Allowed categories:\n")
	for _, name := range req.Vocabulary {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	if len(req.Hints) > 0 {
		b.WriteString("\nRule-based hints suggest these categories (soft prior, not binding):\n")
		for _, hint := range req.Hints {
			fmt.Fprintf(&b, "- %s\n", hint)
		}
	}

	b.WriteString("\nRespond with a JSON object only:\n")
	b.WriteString(`{"label": "<category name>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`)
	b.WriteString("\n\nTitle: ")
	b.WriteString(req.Title)
	b.WriteString("\n\nContent:\n")
	b.WriteString(req.Excerpt)
	b.WriteString("\n")

	return b.String()
}
