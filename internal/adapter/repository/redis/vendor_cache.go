package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// DefaultVendorTTL bounds how stale a cached vendor profile may get.
const DefaultVendorTTL = 5 * time.Minute

// CachedVendorStore is a read-through cache in front of a VendorStore.
// Cache failures fall through to the underlying store.
type CachedVendorStore struct {
	next   usecase.VendorStore
	cache  usecase.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedVendorStore wraps next with cache. A zero ttl uses DefaultVendorTTL.
func NewCachedVendorStore(next usecase.VendorStore, cache usecase.Cache, ttl time.Duration, logger zerolog.Logger) *CachedVendorStore {
	if ttl <= 0 {
		ttl = DefaultVendorTTL
	}
	return &CachedVendorStore{next: next, cache: cache, ttl: ttl, logger: logger}
}

func vendorKey(id int64) string {
	return "vendor:" + strconv.FormatInt(id, 10)
}

// GetVendorPaymentDetails returns the cached profile or loads and caches it.
func (s *CachedVendorStore) GetVendorPaymentDetails(ctx context.Context, vendorID int64) (*domain.VendorPaymentDetails, error) {
	key := vendorKey(vendorID)

	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var v domain.VendorPaymentDetails
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return &v, nil
		}
		s.logger.Warn().Int64("vendor_id", vendorID).Msg("discarding undecodable cached vendor")
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn().Err(err).Int64("vendor_id", vendorID).Msg("vendor cache read failed")
	}

	v, err := s.next.GetVendorPaymentDetails(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn().Err(err).Int64("vendor_id", vendorID).Msg("vendor cache write failed")
		}
	}
	return v, nil
}

// Invalidate drops the cached profile for vendorID.
func (s *CachedVendorStore) Invalidate(ctx context.Context, vendorID int64) error {
	return s.cache.Delete(ctx, vendorKey(vendorID))
}

var _ usecase.VendorStore = (*CachedVendorStore)(nil)
