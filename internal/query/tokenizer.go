// Package query turns user search text into store filters and executes
// them, holding per-session search state including the cached similarity
// reference image.
package query

import (
	"strings"
	"unicode"

	verrors "github.com/imagevault/imagevault/internal/errors"
)

// Tokenize splits search text into tokens. Whitespace separates tokens
// except inside double-quoted spans, and a backslash escapes the next
// character verbatim wherever it appears. An unterminated quote or a
// trailing escape is a malformed-query error.
func Tokenize(text string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		started bool
		quoted  bool
		escaped bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	for _, r := range text {
		switch {
		case escaped:
			current.WriteRune(r)
			started = true
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if escaped {
		return nil, verrors.MalformedQuery("query ends with a dangling escape character")
	}
	if quoted {
		return nil, verrors.MalformedQuery("query contains an unterminated quote")
	}
	flush()
	return tokens, nil
}
