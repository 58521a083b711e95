package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
)

// SQLSTATE codes that mean "another writer got there first, try again".
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// RetryPolicy bounds how often a disbursement transaction is replayed.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy is used by NewRetrier.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
	MaxElapsed:      10 * time.Second,
}

// Retrier implements usecase.Retrier. The callback is a whole transaction,
// so a lost version check on a disbursement replays the read as well.
type Retrier struct {
	policy RetryPolicy
	log    zerolog.Logger
}

func NewRetrier(log zerolog.Logger) *Retrier {
	return NewRetrierWithPolicy(DefaultRetryPolicy, log)
}

func NewRetrierWithPolicy(policy RetryPolicy, log zerolog.Logger) *Retrier {
	return &Retrier{
		policy: policy,
		log:    log.With().Str("component", "db_retrier").Logger(),
	}
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// policy is exhausted. The last error is returned unwrapped.
func (r *Retrier) Retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.MaxElapsed

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if r.policy.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(policy, uint64(r.policy.MaxRetries))
	}

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err != nil && retryReason(err) == "" {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warn().
			Err(err).
			Str("reason", retryReason(err)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("transient database conflict")
	}

	return backoff.RetryNotify(op, policy, notify)
}

// retryReason names the transient condition behind err, or "" when err
// should not be retried.
func retryReason(err error) string {
	if errors.Is(err, domain.ErrConcurrentModification) {
		return "version_conflict"
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	switch pgErr.Code {
	case pgErrDeadlock:
		return "deadlock"
	case pgErrSerializationFailure:
		return "serialization_failure"
	case pgErrLockNotAvailable:
		return "lock_not_available"
	}
	return ""
}

func isRetryableError(err error) bool { return retryReason(err) != "" }
