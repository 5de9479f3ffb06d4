package rewrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, Timeout: time.Second}
}

func TestRetryingReturnsFirstSuccess(t *testing.T) {
	calls := 0
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("busy"))
		}
		return "고친 문장", nil
	})

	var outcomes []string
	r := NewRetrying(inner, fastRetry(3), WithObserver(func(o string) { outcomes = append(outcomes, o) }))
	out, err := r.Rewrite(context.Background(), "문장", "제약")

	require.NoError(t, err)
	assert.Equal(t, "고친 문장", out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{OutcomeRetry, OutcomeSuccess}, outcomes)
}

func TestRetryingTreatsBlankAsTransient(t *testing.T) {
	calls := 0
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		calls++
		return "   ", nil
	})

	_, err := NewRetrying(inner, fastRetry(3)).Rewrite(context.Background(), "문장", "제약")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, internalerr.ErrCollaborator)
	assert.ErrorIs(t, err, ErrEmptyCandidate)

	var collab *internalerr.CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Equal(t, 3, collab.Attempts)
}

func TestRetryingStopsOnFatal(t *testing.T) {
	calls := 0
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		calls++
		return "", NewFatalError(errors.New("bad key"))
	})

	_, err := NewRetrying(inner, fastRetry(5)).Rewrite(context.Background(), "문장", "제약")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, internalerr.ErrCollaborator)
}

func TestRetryingAppliesPerCallTimeout(t *testing.T) {
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		<-ctx.Done()
		return "", NewTransientError(ctx.Err())
	})

	cfg := RetryConfig{MaxAttempts: 2, Timeout: 10 * time.Millisecond}
	_, err := NewRetrying(inner, cfg).Rewrite(context.Background(), "문장", "제약")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, internalerr.ErrCollaborator)
}

func TestRetryingHonoursCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		cancel()
		return "", NewTransientError(errors.New("interrupted"))
	})

	_, err := NewRetrying(inner, fastRetry(3)).Rewrite(ctx, "문장", "제약")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffIsCapped(t *testing.T) {
	r := NewRetrying(nil, RetryConfig{
		MaxAttempts:       5,
		BackoffBase:       time.Second,
		BackoffMultiplier: 10,
		MaxBackoff:        2 * time.Second,
	})
	for attempt := 1; attempt <= 4; attempt++ {
		d := r.backoff(attempt)
		assert.LessOrEqual(t, d, 2*time.Second+2*time.Second/4)
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("x")
	assert.True(t, IsTransient(NewTransientError(base)))
	assert.False(t, IsFatal(NewTransientError(base)))
	assert.True(t, IsFatal(NewFatalError(base)))
	assert.ErrorIs(t, NewFatalError(base), base)
}

func TestLimitedPassesThrough(t *testing.T) {
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		return text + "!", nil
	})
	l := NewLimited(inner, 0, 0)
	out, err := l.Rewrite(context.Background(), "a", "")
	require.NoError(t, err)
	assert.Equal(t, "a!", out)
}

func TestLimitedRespectsCancelledContext(t *testing.T) {
	inner := Func(func(ctx context.Context, text, constraint string) (string, error) {
		return text, nil
	})
	l := NewLimited(inner, 0.001, 1)
	_, err := l.Rewrite(context.Background(), "a", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Rewrite(ctx, "b", "")
	assert.Error(t, err)
}
