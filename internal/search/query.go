package search

import (
	"regexp"
	"strings"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/store"
)

// phraseRegex matches balanced double-quoted spans.
var phraseRegex = regexp.MustCompile(`"([^"]*)"`)

// ParseQuery sanitizes free text into a structured predicate.
//
// Rather than escaping index control syntax, the query is parsed into
// an explicit token/phrase predicate, so user input can never be
// interpreted as operators. Rules:
//   - balanced double-quoted spans become phrases
//   - a trailing '*' marks the final term as a prefix match
//   - everything else is tokenized with the index's own tokenizer;
//     stray quotes, operators, and punctuation are token boundaries
//
// Returns ErrCodeQueryEmpty when nothing searchable remains.
func ParseQuery(raw string) (store.Predicate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return store.Predicate{}, seekerr.EmptyQuery()
	}

	var pred store.Predicate

	// Trailing wildcard opts the last term into prefix matching.
	if strings.HasSuffix(trimmed, "*") {
		pred.Prefix = true
		trimmed = strings.TrimRight(trimmed, "*")
	}

	// Extract balanced quoted spans as phrases.
	rest := phraseRegex.ReplaceAllStringFunc(trimmed, func(m string) string {
		tokens := store.Tokenize(m)
		switch len(tokens) {
		case 0:
			// Quoted punctuation only; contributes nothing.
		case 1:
			pred.Terms = append(pred.Terms, tokens[0])
		default:
			pred.Phrases = append(pred.Phrases, tokens)
		}
		return " "
	})

	// Remaining text (including any unbalanced quote remnants) is
	// plain terms.
	pred.Terms = append(pred.Terms, store.Tokenize(rest)...)

	if pred.Empty() {
		return store.Predicate{}, seekerr.InvalidQuery(
			"query contains no searchable terms")
	}

	// Prefix only applies when a term carries it.
	if len(pred.Terms) == 0 {
		pred.Prefix = false
	}

	return pred, nil
}

// ParseStructured passes a query through to the index's native
// grammar. Only used when the caller explicitly opted in; the index
// may still reject it, which surfaces as an invalid-query error.
func ParseStructured(raw string) (store.Predicate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return store.Predicate{}, seekerr.EmptyQuery()
	}
	return store.Predicate{Raw: trimmed}, nil
}
