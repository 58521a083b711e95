package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// ReviewRepository implements usecase.ReviewRepository.
type ReviewRepository struct {
	store *Store
}

func (r *ReviewRepository) Create(ctx context.Context, tx usecase.Transaction, review *domain.ReconciliationReview) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	st.nextReviewID++
	review.ID = st.nextReviewID
	st.reviews[review.ID] = review.Clone()
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*domain.ReconciliationReview, error) {
	var out *domain.ReconciliationReview
	r.store.read(func(st *state) {
		if rv, ok := st.reviews[id]; ok {
			out = rv.Clone()
		}
	})
	if out == nil {
		return nil, domain.ErrReviewNotFound
	}
	return out, nil
}

func (r *ReviewRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.ReconciliationReview, error) {
	st, err := txState(tx)
	if err != nil {
		return nil, err
	}
	rv, ok := st.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return rv.Clone(), nil
}

func (r *ReviewRepository) Update(ctx context.Context, tx usecase.Transaction, review *domain.ReconciliationReview) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	if hook := r.store.currentHooks().BeforeReviewUpdate; hook != nil {
		if err := hook(review); err != nil {
			return err
		}
	}
	if _, ok := st.reviews[review.ID]; !ok {
		return domain.ErrReviewNotFound
	}
	st.reviews[review.ID] = review.Clone()
	return nil
}

// List returns a page of matching reviews, oldest first, and the total match count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]*domain.ReconciliationReview, int, error) {
	var matched []*domain.ReconciliationReview
	r.store.read(func(st *state) {
		for _, rv := range st.reviews {
			if matchesFilter(rv, filter) {
				matched = append(matched, rv.Clone())
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

// HasPending reports whether an open review exists for the disbursement and reference.
func (r *ReviewRepository) HasPending(ctx context.Context, tx usecase.Transaction, disbursementID int64, externalRef string) (bool, error) {
	st, err := txState(tx)
	if err != nil {
		return false, err
	}
	for _, rv := range st.reviews {
		if rv.DisbursementID == disbursementID && rv.Status == domain.ReviewPending &&
			strings.EqualFold(rv.ExternalReference, externalRef) {
			return true, nil
		}
	}
	return false, nil
}

// ListPendingForDisbursement returns the disbursement's open reviews, oldest first.
func (r *ReviewRepository) ListPendingForDisbursement(ctx context.Context, tx usecase.Transaction, disbursementID int64) ([]*domain.ReconciliationReview, error) {
	st, err := txState(tx)
	if err != nil {
		return nil, err
	}
	var out []*domain.ReconciliationReview
	for _, rv := range st.reviews {
		if rv.DisbursementID == disbursementID && rv.Status == domain.ReviewPending {
			out = append(out, rv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesFilter(rv *domain.ReconciliationReview, f domain.ReviewFilter) bool {
	if f.Status != "" && rv.Status != f.Status {
		return false
	}
	if f.Reason != "" && rv.ReviewReason != f.Reason {
		return false
	}
	if f.MinConfidence != nil && rv.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && rv.Confidence > *f.MaxConfidence {
		return false
	}
	return true
}

// Put stores review as committed, keeping its id. It is meant for seeding.
func (r *ReviewRepository) Put(review *domain.ReconciliationReview) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if review.ID > r.store.data.nextReviewID {
		r.store.data.nextReviewID = review.ID
	}
	r.store.data.reviews[review.ID] = review.Clone()
}

var _ usecase.ReviewRepository = (*ReviewRepository)(nil)
