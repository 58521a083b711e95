package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// DisbursementRepository implements usecase.DisbursementRepository.
type DisbursementRepository struct {
	store *Store
}

// Create assigns the next id and stores d.
func (r *DisbursementRepository) Create(ctx context.Context, tx usecase.Transaction, d *domain.Disbursement) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	st.nextDisbursementID++
	d.ID = st.nextDisbursementID
	d.Version = 1
	st.disbursements[d.ID] = d.Clone()
	return nil
}

// GetByID returns the committed disbursement.
func (r *DisbursementRepository) GetByID(ctx context.Context, id int64) (*domain.Disbursement, error) {
	var out *domain.Disbursement
	r.store.read(func(st *state) {
		if d, ok := st.disbursements[id]; ok {
			out = d.Clone()
		}
	})
	if out == nil {
		return nil, domain.ErrDisbursementNotFound
	}
	return out, nil
}

// GetByIDForUpdate reads d inside tx. Transactions are serialized, so the read is locked.
func (r *DisbursementRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Disbursement, error) {
	st, err := txState(tx)
	if err != nil {
		return nil, err
	}
	d, ok := st.disbursements[id]
	if !ok {
		return nil, domain.ErrDisbursementNotFound
	}
	return d.Clone(), nil
}

// Update stores d if its version is current.
func (r *DisbursementRepository) Update(ctx context.Context, tx usecase.Transaction, d *domain.Disbursement) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	if hook := r.store.currentHooks().BeforeDisbursementUpdate; hook != nil {
		if err := hook(d); err != nil {
			return err
		}
	}
	cur, ok := st.disbursements[d.ID]
	if !ok {
		return domain.ErrDisbursementNotFound
	}
	if cur.Version != d.Version {
		return domain.ErrConcurrentModification
	}
	d.Version++
	st.disbursements[d.ID] = d.Clone()
	return nil
}

// ListByRunAndStatus returns the run's disbursements in status, by id.
func (r *DisbursementRepository) ListByRunAndStatus(ctx context.Context, runID int64, status domain.DisbursementStatus) ([]*domain.Disbursement, error) {
	return r.filter(func(d *domain.Disbursement) bool {
		return d.PaymentRunID != nil && *d.PaymentRunID == runID && d.Status == status
	}), nil
}

// ListByStatusSince returns disbursements in status updated at or after since.
func (r *DisbursementRepository) ListByStatusSince(ctx context.Context, status domain.DisbursementStatus, since time.Time) ([]*domain.Disbursement, error) {
	return r.filter(func(d *domain.Disbursement) bool {
		return d.Status == status && !d.UpdatedAt.Before(since)
	}), nil
}

// ListUnreconciled returns CONFIRMED disbursements of methods settled at or after since.
func (r *DisbursementRepository) ListUnreconciled(ctx context.Context, methods []domain.PaymentMethod, since time.Time) ([]*domain.Disbursement, error) {
	wanted := make(map[domain.PaymentMethod]bool, len(methods))
	for _, m := range methods {
		wanted[m] = true
	}
	return r.filter(func(d *domain.Disbursement) bool {
		return d.Status == domain.StatusConfirmed && wanted[d.Method] && !d.SettledAt().Before(since)
	}), nil
}

// ListCreatedBetween returns disbursements created within [From, To).
func (r *DisbursementRepository) ListCreatedBetween(ctx context.Context, dr domain.DateRange) ([]*domain.Disbursement, error) {
	return r.filter(func(d *domain.Disbursement) bool {
		return !d.CreatedAt.Before(dr.From) && d.CreatedAt.Before(dr.To)
	}), nil
}

func (r *DisbursementRepository) filter(keep func(d *domain.Disbursement) bool) []*domain.Disbursement {
	var out []*domain.Disbursement
	r.store.read(func(st *state) {
		for _, d := range st.disbursements {
			if keep(d) {
				out = append(out, d.Clone())
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Put stores d as committed, keeping its id. It is meant for seeding.
func (r *DisbursementRepository) Put(d *domain.Disbursement) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if d.Version == 0 {
		d.Version = 1
	}
	if d.ID > r.store.data.nextDisbursementID {
		r.store.data.nextDisbursementID = d.ID
	}
	r.store.data.disbursements[d.ID] = d.Clone()
}

var _ usecase.DisbursementRepository = (*DisbursementRepository)(nil)
