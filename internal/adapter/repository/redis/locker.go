package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// Locker implements usecase.Locker with Redis leases so several engine
// instances serialize mutations of the same disbursement.
type Locker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	prefix  string
	logger  zerolog.Logger
}

// NewLocker creates a Locker. Leases expire after ttl if the holder dies.
func NewLocker(client redislock.RedisClient, ttl time.Duration, logger zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client:  redislock.New(client),
		ttl:     ttl,
		backoff: 50 * time.Millisecond,
		prefix:  "vendorpay:lock:",
		logger:  logger,
	}
}

// Lock obtains the lease for key, retrying until ctx is done or the lease ttl
// elapses. It returns domain.ErrLockNotObtained when the key stays held.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, err
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn().Err(err).Str("key", key).Msg("releasing lock")
		}
	}, nil
}

var _ usecase.Locker = (*Locker)(nil)
