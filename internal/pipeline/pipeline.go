// Package pipeline orchestrates the search, resolve, and email stages across
// failover instance pools.
package pipeline

import (
	"context"
	"net/url"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SearchClient performs one company search call through one credential
// instance. Implementations classify failures before returning them.
type SearchClient interface {
	Search(ctx context.Context, q model.Query, proxy *url.URL) ([]model.Company, error)
}

// FinderClient performs one email lookup call through one credential instance.
type FinderClient interface {
	FindEmails(ctx context.Context, domain string, proxy *url.URL) ([]model.EmailRecord, error)
}

// Options tunes orchestration behavior.
type Options struct {
	Workers            int     // concurrent units per stage, default 4
	MaxAttemptsPerUnit int     // failover attempts before a unit fails, default 5
	RequestsPerSecond  float64 // shared pacing across all instances, default 3
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttemptsPerUnit <= 0 {
		o.MaxAttemptsPerUnit = 5
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 3
	}
	return o
}

// UnitFailure records why one unit of work gave up.
type UnitFailure struct {
	Unit     string `json:"unit"`
	Attempts int    `json:"attempts"`
	Outcome  string `json:"outcome"`
	Err      string `json:"error"`
}

// StageReport summarizes one stage of a run.
type StageReport struct {
	Done     int           `json:"done"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Failures []UnitFailure `json:"failures,omitempty"`
}

// Report summarizes a completed run.
type Report struct {
	RunID      string      `json:"run_id"`
	Queries    StageReport `json:"queries"`
	Domains    StageReport `json:"domains"`
	Companies  int         `json:"companies"`
	NewDomains int         `json:"new_domains"`
	Emails     int         `json:"emails"`
}
