package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches unicode letter/digit runs. Everything else is a
// boundary, matching FTS5's unicode61 tokenizer so that the policy is
// identical at index time and query time.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize splits text into normalized search tokens: split on
// non-alphanumeric boundaries, casefold, drop empty tokens. Pure
// punctuation never produces a token.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}
