package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/domain"
)

func TestLocker_ExclusiveAndReleased(t *testing.T) {
	client, mr := startRedis(t)
	locker := NewLocker(client, time.Second, zerolog.Nop())

	unlock, err := locker.Lock(context.Background(), "disbursement:42")
	require.NoError(t, err)
	assert.True(t, mr.Exists("vendorpay:lock:disbursement:42"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "disbursement:42")
	assert.ErrorIs(t, err, domain.ErrLockNotObtained)

	unlock()
	assert.False(t, mr.Exists("vendorpay:lock:disbursement:42"))

	unlock2, err := locker.Lock(context.Background(), "disbursement:42")
	require.NoError(t, err)
	unlock2()
}

func TestLocker_SerializesWriters(t *testing.T) {
	client, _ := startRedis(t)
	locker := NewLocker(client, 5*time.Second, zerolog.Nop())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := locker.Lock(ctx, "disbursement:7")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
