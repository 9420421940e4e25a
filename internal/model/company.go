package model

import "strings"

// Company is a raw result from a search-provider call. Immutable once
// accepted; Domain is filled in by the resolver stage.
type Company struct {
	ListingID string `json:"listing_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	QueryID   string `json:"query_id"`
	Instance  string `json:"instance"` // originating provider instance id
	Domain    string `json:"domain,omitempty"`
}

// Key returns the normalized dedup identity for the company: name plus
// address plus URL, so the same business surfaced twice collapses to one.
func (c Company) Key() string {
	parts := []string{
		normalizeKey(c.Name),
		normalizeKey(c.Address),
		strings.ToLower(strings.TrimSpace(c.URL)),
	}
	return strings.Join(parts, "|")
}

// Domain is a canonical registrable domain derived from one or more
// companies' URLs. Deduplicated globally.
type Domain struct {
	Name      string   `json:"name"`
	Companies []string `json:"companies,omitempty"` // listing ids that resolved here
}
