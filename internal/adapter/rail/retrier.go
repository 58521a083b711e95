// Package rail holds settlement rail clients: a deterministic sandbox and an
// HTTP gateway client, plus the retry policy used around rail calls.
package rail

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
)

// Retrier implements usecase.Retrier for rail calls. Only errors the rail
// marks retryable, and per-attempt timeouts, are retried.
type Retrier struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          zerolog.Logger
}

// NewRetrier creates a rail Retrier making at most maxAttempts calls.
func NewRetrier(maxAttempts int, initialInterval time.Duration, logger zerolog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if initialInterval <= 0 {
		initialInterval = 200 * time.Millisecond
	}
	return &Retrier{
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		maxInterval:     5 * time.Second,
		logger:          logger.With().Str("component", "rail_retrier").Logger(),
	}
}

// Retry runs operation until it succeeds, fails permanently, or the attempt
// budget or ctx runs out.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsRetryable(err) || attempt >= r.maxAttempts {
			return backoff.Permanent(err)
		}

		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("transient rail error, retrying")
		return err
	}, backoff.WithContext(b, ctx))
}

// IsRetryable reports whether a rail call that failed with err may be resubmitted.
func IsRetryable(err error) bool {
	var railErr *domain.RailError
	if errors.As(err, &railErr) {
		return railErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
