// Package model holds the core domain types shared across the pipeline.
package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Query is one search unit: a term searched within a location.
type Query struct {
	Term     string `json:"term"`
	Location string `json:"location"`
}

// ID returns the normalized dedup identity of the query. Case, surrounding
// whitespace, and internal whitespace runs do not change the identity.
func (q Query) ID() string {
	return normalizeKey(q.Term) + "|" + normalizeKey(q.Location)
}

func (q Query) String() string {
	if q.Location == "" {
		return q.Term
	}
	return q.Term + ", " + q.Location
}

// normalizeKey canonicalizes a string for identity comparison: Unicode
// compatibility normalization, case folding, and whitespace collapse.
func normalizeKey(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
