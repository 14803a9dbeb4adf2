package query

import (
	"strings"

	"github.com/imagevault/imagevault/internal/store"
)

// Compiled is the outcome of parsing one token list: the filter clauses to
// AND together, plus the reference path when a similar: term was present.
type Compiled struct {
	Filter        store.Filter
	ReferencePath string
	HasReference  bool
}

// Compile maps tokens onto filter clauses. Each token contributes one
// clause; clauses combine with AND. A similar: token contributes no clause
// and instead names the reference image for distance ranking. When several
// similar: tokens appear the last one wins.
func Compile(tokens []string) Compiled {
	var out Compiled
	for _, token := range tokens {
		prefix, rest, ok := strings.Cut(token, ":")
		if !ok {
			out.Filter = append(out.Filter, fullTextClause(token))
			continue
		}

		switch strings.ToLower(prefix) {
		case "filename":
			out.Filter = append(out.Filter, store.Clause{
				Any: []store.Match{{Field: store.FieldFilename, Substring: rest}},
			})
		case "tag", "exif":
			out.Filter = append(out.Filter, tagClause(rest))
		case "all":
			out.Filter = append(out.Filter, fullTextClause(rest))
		case "similar":
			out.ReferencePath = rest
			out.HasReference = true
		default:
			// Unknown prefixes are not operators; the whole token is an
			// ordinary search term.
			out.Filter = append(out.Filter, fullTextClause(token))
		}
	}
	return out
}

// fullTextClause is the default predicate: the term may appear in the
// filename, the canonical path, or any tag value.
func fullTextClause(term string) store.Clause {
	return store.Clause{
		Any: []store.Match{
			{Field: store.FieldFilename, Substring: term},
			{Field: store.FieldPath, Substring: term},
			{Field: store.FieldTagValue, Substring: term},
		},
	}
}

// tagClause handles tag:/exif: remainders. With an embedded colon the
// remainder splits into name and value which must both match on the same
// tag row; without one the remainder may match either the name or the
// value.
func tagClause(rest string) store.Clause {
	if name, value, ok := strings.Cut(rest, ":"); ok {
		return store.Clause{Tag: &store.TagPair{Name: name, Value: value}}
	}
	return store.Clause{
		Any: []store.Match{
			{Field: store.FieldTagName, Substring: rest},
			{Field: store.FieldTagValue, Substring: rest},
		},
	}
}
