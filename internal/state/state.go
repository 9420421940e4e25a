// Package state persists the identity sets that make the pipeline resumable.
package state

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCorrupt signals that persisted state is unreadable. Correctness of dedup
// cannot be guaranteed, so the run must abort before any work begins.
var ErrCorrupt = eris.New("state: persisted state is corrupt")

// RunCounts summarizes one pipeline run for the run history table.
type RunCounts struct {
	QueriesDone    int `json:"queries_done"`
	QueriesSkipped int `json:"queries_skipped"`
	QueriesFailed  int `json:"queries_failed"`
	DomainsDone    int `json:"domains_done"`
	DomainsSkipped int `json:"domains_skipped"`
	DomainsFailed  int `json:"domains_failed"`
}

// Run is one recorded pipeline run.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Counts     RunCounts  `json:"counts"`
}

// Stats reports the size of each identity set.
type Stats struct {
	Queries   int `json:"queries"`
	Domains   int `json:"domains"`
	Attempts  int `json:"attempts"`
	Companies int `json:"companies"`
	Emails    int `json:"emails"`
}

// Store is the dedup state store: append-only identity sets that are the sole
// authority for "already done" decisions on resume. Every mark is idempotent;
// marking an already-marked identity is a no-op. Each mark is durably flushed
// before the call returns, so a crash loses at most the in-flight unit.
type Store interface {
	IsNewQuery(ctx context.Context, id string) (bool, error)
	MarkQueryDone(ctx context.Context, id string) error

	IsNewDomain(ctx context.Context, name string) (bool, error)
	MarkDomainSeen(ctx context.Context, name string) error

	WasAttempted(ctx context.Context, domain, finderInstance string) (bool, error)
	MarkAttempted(ctx context.Context, domain, finderInstance string) error

	IsNewCompany(ctx context.Context, key string) (bool, error)
	MarkCompanySeen(ctx context.Context, key string) error

	IsNewEmail(ctx context.Context, address string) (bool, error)
	MarkEmailSeen(ctx context.Context, address string) error

	// Run history
	StartRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, counts RunCounts) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	Stats(ctx context.Context) (Stats, error)

	// Clear drops every identity set and the run history (fresh runs).
	Clear(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
