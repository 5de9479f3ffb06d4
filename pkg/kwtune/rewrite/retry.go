package rewrite

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
)

// RetryConfig configures retry behavior for collaborator calls.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per call.
	MaxAttempts int

	// Timeout bounds each individual attempt. Zero means no bound beyond
	// the caller's context.
	Timeout time.Duration

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry defaults for rewriter calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		Timeout:           30 * time.Second,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}

// Outcome labels reported to a CallObserver.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailure = "failure"
)

// CallObserver is notified after every attempt.
type CallObserver func(outcome string)

// Retrying wraps a Rewriter with per-attempt timeouts and bounded retries.
// Blank candidates count as transient failures.
type Retrying struct {
	next     Rewriter
	cfg      RetryConfig
	logger   *slog.Logger
	observer CallObserver
}

// RetryOption configures a Retrying rewriter.
type RetryOption func(*Retrying)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after each attempt.
func WithObserver(fn CallObserver) RetryOption {
	return func(r *Retrying) {
		r.observer = fn
	}
}

// NewRetrying wraps next.
func NewRetrying(next Rewriter, cfg RetryConfig, opts ...RetryOption) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	r := &Retrying{next: next, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite calls the wrapped rewriter until it returns a non-blank candidate,
// a fatal error, or the attempt budget is spent. Exhaustion is reported as
// an *internalerr.CollaboratorError.
func (r *Retrying) Rewrite(ctx context.Context, text, constraint string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out, err := r.attempt(ctx, text, constraint)
		if err == nil {
			r.observe(OutcomeSuccess)
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			r.observe(OutcomeFailure)
			return "", ctx.Err()
		}
		if IsFatal(err) {
			r.observe(OutcomeFailure)
			return "", &internalerr.CollaboratorError{Op: "rewrite", Attempts: attempt, Err: err}
		}

		if attempt < r.cfg.MaxAttempts {
			r.observe(OutcomeRetry)
			backoff := r.backoff(attempt)
			r.logger.Debug("rewrite failed, retrying",
				"attempt", attempt,
				"max_attempts", r.cfg.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	r.observe(OutcomeFailure)
	return "", &internalerr.CollaboratorError{Op: "rewrite", Attempts: r.cfg.MaxAttempts, Err: lastErr}
}

func (r *Retrying) attempt(ctx context.Context, text, constraint string) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	out, err := r.next.Rewrite(ctx, text, constraint)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", NewTransientError(ErrEmptyCandidate)
	}
	return out, nil
}

func (r *Retrying) observe(outcome string) {
	if r.observer != nil {
		r.observer(outcome)
	}
}

// backoff computes exponential backoff with +/- 25% jitter.
func (r *Retrying) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= r.cfg.BackoffMultiplier
	}

	backoff := time.Duration(float64(r.cfg.BackoffBase) * multiplier)
	if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
		backoff = r.cfg.MaxBackoff
	}
	if backoff <= 0 {
		return 0
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
