// Package rewrite defines the text-generation collaborator the engine calls
// for edits it cannot make mechanically, plus retry and rate-limit wrappers.
// The engine never trusts a rewrite: every candidate is re-segmented and
// re-analyzed by the caller before it is accepted.
package rewrite

import "context"

// Rewriter produces a candidate rewrite of text that satisfies the
// natural-language constraint. Implementations must be safe for concurrent
// use when shared between batch workers.
type Rewriter interface {
	Rewrite(ctx context.Context, text, constraint string) (string, error)
}

// Func adapts a plain function to Rewriter.
type Func func(ctx context.Context, text, constraint string) (string, error)

// Rewrite calls f.
func (f Func) Rewrite(ctx context.Context, text, constraint string) (string, error) {
	return f(ctx, text, constraint)
}
