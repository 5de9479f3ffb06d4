package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUnattainable        = errors.New("unattainable configuration")
	ErrOptimizationTimeout = errors.New("optimization did not converge")
	ErrCollaborator        = errors.New("collaborator failure")
	ErrRepairFailed        = errors.New("particle repair failed")
)

// CollaboratorError reports an external rewriting or substitution call that
// kept failing after its retry budget was spent.
type CollaboratorError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempt(s): %v", ErrCollaborator, e.Op, e.Attempts, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// RepairError reports a single-particle occurrence that no rewritten
// candidate turned into a countable keyword.
type RepairError struct {
	Keyword  string `json:"keyword"`
	Sentence string `json:"sentence"`
	Attempts int    `json:"attempts"`
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("%s: %q in %q still uncounted after %d attempt(s)", ErrRepairFailed, e.Keyword, e.Sentence, e.Attempts)
}

func (e *RepairError) Unwrap() error {
	return ErrRepairFailed
}
