// text.go
package main

import (
	"regexp"
	"strings"
)

var commandRe = regexp.MustCompile(`^/([a-zA-Z0-9_]+)(?:\s+(.*))?$`)

// truncateText cuts text at maxLen runes, marking the cut with an ellipsis.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}

// splitText slices text into chunks of at most chunkSize runes. Messenger
// rejects messages over 2000 characters, so long replies go out in pieces.
func splitText(text string, chunkSize int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// extractCommand splits a leading "/command rest" into its parts. The command
// comes back lowercased; non-command text returns ("", text) unchanged.
func extractCommand(text string) (string, string) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", text
	}
	return strings.ToLower(m[1]), m[2]
}
