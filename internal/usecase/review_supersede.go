package usecase

import (
	"context"
	"time"

	"github.com/iho/vendorpay/internal/domain"
)

// reviewCloser rejects the open reviews left behind when a disbursement
// reaches RECONCILED. It runs inside the committing transaction.
type reviewCloser struct {
	reviews ReviewRepository
	outbox  OutboxRepository
	idGen   IDGenerator
}

// supersede closes every open review of disbursementID except keep and
// returns how many it closed.
func (c *reviewCloser) supersede(ctx context.Context, tx Transaction, disbursementID, keep int64, at time.Time) (int, error) {
	open, err := c.reviews.ListPendingForDisbursement(ctx, tx, disbursementID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, r := range open {
		if r.ID == keep {
			continue
		}
		if err := r.Reject(SupersedeActor, domain.RejectionSuperseded, at); err != nil {
			return closed, err
		}
		if err := c.reviews.Update(ctx, tx, r); err != nil {
			return closed, err
		}
		if err := c.outbox.Create(ctx, tx, reviewEvent(c.idGen, r, domain.EventTypeReviewRejected, SupersedeActor, at)); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func reviewEvent(idGen IDGenerator, r *domain.ReconciliationReview, eventType, actor string, at time.Time) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   formatID(r.ID),
		AggregateType: domain.AggregateTypeReview,
		EventType:     eventType,
		Payload:       domain.NewReviewEvent(r, actor),
		CreatedAt:     at,
	}
}
