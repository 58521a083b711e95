package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/domain"
)

type countingVendorStore struct {
	calls   int
	vendors map[int64]*domain.VendorPaymentDetails
}

func (s *countingVendorStore) GetVendorPaymentDetails(_ context.Context, id int64) (*domain.VendorPaymentDetails, error) {
	s.calls++
	v, ok := s.vendors[id]
	if !ok {
		return nil, domain.ErrVendorNotFound
	}
	cp := *v
	return &cp, nil
}

func TestCachedVendorStore_ReadThrough(t *testing.T) {
	client, mr := startRedis(t)
	next := &countingVendorStore{vendors: map[int64]*domain.VendorPaymentDetails{
		7: {VendorID: 7, PreferredMethod: domain.MethodACH, BankRoutingNumber: "021000021", BankAccountNumber: "000123456789"},
	}}
	store := NewCachedVendorStore(next, NewCache(client), time.Minute, zerolog.Nop())
	ctx := context.Background()

	v, err := store.GetVendorPaymentDetails(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "000123456789", v.BankAccountNumber)

	v, err = store.GetVendorPaymentDetails(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodACH, v.PreferredMethod)
	assert.Equal(t, 1, next.calls)

	require.NoError(t, store.Invalidate(ctx, 7))
	_, err = store.GetVendorPaymentDetails(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	mr.FastForward(2 * time.Minute)
	_, err = store.GetVendorPaymentDetails(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedVendorStore_NotFoundIsNotCached(t *testing.T) {
	client, mr := startRedis(t)
	next := &countingVendorStore{vendors: map[int64]*domain.VendorPaymentDetails{}}
	store := NewCachedVendorStore(next, NewCache(client), 0, zerolog.Nop())

	_, err := store.GetVendorPaymentDetails(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrVendorNotFound)
	_, _ = store.GetVendorPaymentDetails(context.Background(), 9)
	assert.Equal(t, 2, next.calls)
	assert.Empty(t, keysWithPrefix(mr, "vendorpay:cache:"))
}

func TestCachedVendorStore_FallsThroughWhenRedisDown(t *testing.T) {
	client, mr := startRedis(t)
	next := &countingVendorStore{vendors: map[int64]*domain.VendorPaymentDetails{
		7: {VendorID: 7, PreferredMethod: domain.MethodUSDC, CryptoAddress: "0xabc"},
	}}
	store := NewCachedVendorStore(next, NewCache(client), time.Minute, zerolog.Nop())
	mr.Close()

	v, err := store.GetVendorPaymentDetails(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", v.CryptoAddress)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}
