package alert

import "strings"

const commentMarker = "//"

// Tokenize splits a raw alert line into whitespace-separated tokens.
// Empty lines and comment lines yield an empty sequence. Purely
// lexical: no token semantics are checked here.
func Tokenize(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, commentMarker) {
		return nil
	}
	return strings.Fields(trimmed)
}

func lower(s string) string { return strings.ToLower(s) }
