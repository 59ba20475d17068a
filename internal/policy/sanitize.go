package policy

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize normalizes arbitrary inbound text before it enters the pipeline:
// NFKD decomposition, ASCII control characters removed, surrounding
// whitespace trimmed. Total over all inputs and idempotent.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKD.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
