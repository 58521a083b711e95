package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/adapter/repository/memory"
	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

func TestReviewUseCase_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("reconciles atomically", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 42, 82.5, 30)

		review, err := f.reviewUseCase().Approve(ctx, 1, "  alice@example.com ")
		require.NoError(t, err)
		assert.Equal(t, domain.ReviewApproved, review.Status)
		assert.Equal(t, "alice@example.com", review.ApprovedBy)
		require.NotNil(t, review.ResolvedAt)

		d, err := f.store.Disbursements().GetByID(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReconciled, d.Status)
		assert.Equal(t, domain.ReconciliationManual, *d.ReconciliationType)
		assert.Equal(t, 82.5, *d.ReconciliationConfidence)

		logs, _ := f.store.Logs().ListByDisbursement(ctx, 42)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].AutoReconciled)
		assert.Equal(t, "alice@example.com", logs[0].ApprovedBy)
		assert.Equal(t, "stmt-1", logs[0].ExternalReference)

		assert.Len(t, f.store.Outbox().Events(domain.EventTypeReviewApproved), 1)
		assert.Len(t, f.store.Outbox().Events(domain.EventTypeDisbursementReconciled), 1)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReviewsResolved.WithLabelValues("APPROVED", "human")))
	})

	t.Run("second approval is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 42, 82.5, 30)
		uc := f.reviewUseCase()

		_, err := uc.Approve(ctx, 1, "alice")
		require.NoError(t, err)
		_, err = uc.Approve(ctx, 1, "bob")
		assert.ErrorIs(t, err, domain.ErrReviewAlreadyResolved)

		logs, _ := f.store.Logs().ListByDisbursement(ctx, 42)
		assert.Len(t, logs, 1)
	})

	t.Run("approval closes sibling reviews", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 42, 82.5, 30)
		f.seedReview(2, 42, 70, 30)
		f.seedConfirmed(43, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(3, 43, 70, 30)
		uc := f.reviewUseCase()

		_, err := uc.Approve(ctx, 1, "alice")
		require.NoError(t, err)

		r2, _ := f.store.Reviews().GetByID(ctx, 2)
		assert.Equal(t, domain.ReviewRejected, r2.Status)
		assert.Equal(t, domain.RejectionSuperseded, r2.RejectionReason)
		assert.Equal(t, usecase.SupersedeActor, r2.RejectedBy)
		require.NotNil(t, r2.ResolvedAt)

		r3, _ := f.store.Reviews().GetByID(ctx, 3)
		assert.Equal(t, domain.ReviewPending, r3.Status, "other disbursements keep their reviews")

		rejected := f.store.Outbox().Events(domain.EventTypeReviewRejected)
		require.Len(t, rejected, 1)
		assert.Equal(t, "2", rejected[0].AggregateID)

		_, err = uc.Approve(ctx, 2, "alice")
		assert.ErrorIs(t, err, domain.ErrReviewAlreadyResolved)

		page, err := uc.ListPending(ctx, domain.ReviewFilter{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, int64(3), page.Items[0].ID)
	})

	t.Run("failed sibling close rolls the approval back", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 42, 82.5, 30)
		f.seedReview(2, 42, 70, 30)
		f.store.SetHooks(memory.Hooks{BeforeReviewUpdate: func(r *domain.ReconciliationReview) error {
			if r.ID == 2 {
				return errors.New("disk full")
			}
			return nil
		}})

		_, err := f.reviewUseCase().Approve(ctx, 1, "alice")
		require.Error(t, err)

		r1, _ := f.store.Reviews().GetByID(ctx, 1)
		assert.Equal(t, domain.ReviewPending, r1.Status)
		d, _ := f.store.Disbursements().GetByID(ctx, 42)
		assert.Equal(t, domain.StatusConfirmed, d.Status)
	})

	t.Run("failed log write rolls everything back", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 42, 82.5, 30)
		f.store.SetHooks(memory.Hooks{BeforeLogCreate: func(*domain.ReconciliationLogEntry) error {
			return errors.New("disk full")
		}})

		_, err := f.reviewUseCase().Approve(ctx, 1, "alice")
		require.Error(t, err)

		r, _ := f.store.Reviews().GetByID(ctx, 1)
		assert.Equal(t, domain.ReviewPending, r.Status)
		d, _ := f.store.Disbursements().GetByID(ctx, 42)
		assert.Equal(t, domain.StatusConfirmed, d.Status)
		assert.Empty(t, f.store.Outbox().Events(domain.EventTypeReviewApproved))
	})

	t.Run("approver required", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reviewUseCase().Approve(ctx, 1, "   ")
		assert.ErrorIs(t, err, domain.ErrActorRequired)
	})

	t.Run("unknown review", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reviewUseCase().Approve(ctx, 99, "alice")
		assert.ErrorIs(t, err, domain.ErrReviewNotFound)
	})
}

func TestReviewUseCase_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedConfirmed(42, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
	f.seedReview(1, 42, 60, 500)
	uc := f.reviewUseCase()

	review, err := uc.Reject(ctx, 1, "bob", "wrong vendor")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRejected, review.Status)
	assert.Equal(t, "bob", review.RejectedBy)
	assert.Equal(t, "wrong vendor", review.RejectionReason)

	d, _ := f.store.Disbursements().GetByID(ctx, 42)
	assert.Equal(t, domain.StatusConfirmed, d.Status)
	assert.Len(t, f.store.Outbox().Events(domain.EventTypeReviewRejected), 1)

	_, err = uc.Reject(ctx, 1, "bob", "again")
	assert.ErrorIs(t, err, domain.ErrReviewAlreadyResolved)

	_, err = uc.Reject(ctx, 1, "", "x")
	assert.ErrorIs(t, err, domain.ErrActorRequired)
}

func TestReviewUseCase_AutoTriagePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for id := int64(1); id <= 4; id++ {
		f.seedConfirmed(id, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
	}
	f.seedReview(1, 1, 90, 50)  // approve
	f.seedReview(2, 2, 40, 0)   // reject
	f.seedReview(3, 3, 70, 0)   // left for a human
	f.seedReview(4, 4, 95, 500) // confident but too far off

	res, err := f.reviewUseCase().AutoTriagePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Evaluated)
	assert.Equal(t, 1, res.Approved)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 2, res.Untouched)
	assert.Empty(t, res.Errors)

	r1, _ := f.store.Reviews().GetByID(ctx, 1)
	assert.Equal(t, domain.ReviewApproved, r1.Status)
	assert.Equal(t, usecase.AutoTriageActor, r1.ApprovedBy)

	r2, _ := f.store.Reviews().GetByID(ctx, 2)
	assert.Equal(t, domain.ReviewRejected, r2.Status)
	assert.Equal(t, string(domain.ReasonLowConfidence), r2.RejectionReason)

	r3, _ := f.store.Reviews().GetByID(ctx, 3)
	assert.Equal(t, domain.ReviewPending, r3.Status)

	d1, _ := f.store.Disbursements().GetByID(ctx, 1)
	assert.Equal(t, domain.StatusReconciled, d1.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReviewsResolved.WithLabelValues("APPROVED", "system")))
}

func TestReviewUseCase_AutoTriageCapInCurrencyUnits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seedJPY := func(id int64) {
		d := f.seedConfirmed(id, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		d.Currency = "JPY"
		f.store.Disbursements().Put(d)
	}
	seedJPY(1)
	seedJPY(2)
	f.seedReview(1, 1, 95, 1)  // one yen: within a 1.0 cap
	f.seedReview(2, 2, 95, 50) // fifty yen: far outside it

	res, err := f.reviewUseCase().AutoTriagePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Approved)
	assert.Equal(t, 1, res.Untouched)
	assert.Empty(t, res.Errors)

	r2, _ := f.store.Reviews().GetByID(ctx, 2)
	assert.Equal(t, domain.ReviewPending, r2.Status)
}

func TestReviewUseCase_AutoTriageSupersedesReconciledDisbursements(t *testing.T) {
	ctx := context.Background()

	t.Run("siblings of an approved review are not errors", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(1, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(1, 1, 95, 0)
		f.seedReview(2, 1, 90, 10)
		uc := f.reviewUseCase()

		res, err := uc.AutoTriagePending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Evaluated)
		assert.Equal(t, 1, res.Approved)
		assert.Empty(t, res.Errors)

		r2, _ := f.store.Reviews().GetByID(ctx, 2)
		assert.Equal(t, domain.RejectionSuperseded, r2.RejectionReason)

		again, err := uc.AutoTriagePending(ctx)
		require.NoError(t, err)
		assert.Zero(t, again.Evaluated)
	})

	t.Run("stale reviews of a reconciled disbursement are closed", func(t *testing.T) {
		f := newFixture(t)
		d := f.seedConfirmed(1, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		require.NoError(t, d.MarkReconciled(domain.ReconciliationAuto, 100, f.now()))
		f.store.Disbursements().Put(d)
		f.seedReview(1, 1, 70, 0)
		f.seedReview(2, 1, 95, 0)

		res, err := f.reviewUseCase().AutoTriagePending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Superseded)
		assert.Zero(t, res.Approved)
		assert.Empty(t, res.Errors)

		for _, id := range []int64{1, 2} {
			r, _ := f.store.Reviews().GetByID(ctx, id)
			assert.Equal(t, domain.ReviewRejected, r.Status)
			assert.Equal(t, domain.RejectionSuperseded, r.RejectionReason)
		}
		assert.Len(t, f.store.Outbox().Events(domain.EventTypeReviewRejected), 2)
		assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.ReviewsResolved.WithLabelValues("REJECTED", "system")))
	})
}

func TestReviewUseCase_ListPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for id := int64(1); id <= 5; id++ {
		f.seedConfirmed(id, domain.MethodACH, 10000, f.now(), domain.ExternalReference{})
		f.seedReview(id, id, 70, 0)
	}
	resolved, _ := f.store.Reviews().GetByID(ctx, 5)
	resolved.Status = domain.ReviewRejected
	at := time.Now().UTC()
	resolved.ResolvedAt = &at
	f.store.Reviews().Put(resolved)

	page, err := f.reviewUseCase().ListPending(ctx, domain.ReviewFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].ID)
	assert.Equal(t, int64(4), page.Items[1].ID)

	page, err = f.reviewUseCase().ListPending(ctx, domain.ReviewFilter{Status: domain.ReviewRejected})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, domain.DefaultPageSize, page.Limit)
}
