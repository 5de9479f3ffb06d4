package store

import (
	"context"
	"time"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
)

// Store is the main interface for persisting and querying optimization runs
type Store interface {
	Close() error

	// SaveRun inserts or replaces a run, keyed by ID.
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns internalerr.ErrNotFound for an unknown ID.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, f Filter) ([]Run, error)
}

// Run is one stored optimization of one document
type Run struct {
	ID         string
	DocID      string
	Title      string
	Keyword    string
	CreatedAt  time.Time
	Converged  bool
	Iterations int
	Input      string
	Output     string
	Report     analytics.Report
	Edits      []string
	Hashtags   []string
	// Error holds the message of a run that ended in an error.
	Error string
}

// Filter narrows ListRuns. Zero values match everything.
type Filter struct {
	Keyword string
	DocID   string
	// OnlyFailed keeps runs that did not converge.
	OnlyFailed bool
	Limit      int
}

// DefaultListLimit applies when Filter.Limit is not positive.
const DefaultListLimit = 20

// Matches reports whether r passes the filter's field conditions.
func (f Filter) Matches(r Run) bool {
	if f.Keyword != "" && r.Keyword != f.Keyword {
		return false
	}
	if f.DocID != "" && r.DocID != f.DocID {
		return false
	}
	if f.OnlyFailed && r.Converged {
		return false
	}
	return true
}

// EffectiveLimit returns the list bound to apply.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
