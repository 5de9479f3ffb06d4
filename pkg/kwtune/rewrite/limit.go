package rewrite

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited bounds the call rate of a shared rewriter. Batch workers wrap one
// client in a single Limited so the limit holds across documents.
type Limited struct {
	next    Rewriter
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst. A
// non-positive rps disables limiting.
func NewLimited(next Rewriter, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Rewrite waits for the limiter and then calls the wrapped rewriter.
func (l *Limited) Rewrite(ctx context.Context, text, constraint string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Rewrite(ctx, text, constraint)
}
