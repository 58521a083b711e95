package usecase

import (
	"context"
	"time"

	"github.com/iho/vendorpay/internal/domain"
)

// mutation changes a row-locked disbursement inside tx. It returns the outbox
// event type to emit, or "" for none.
type mutation func(ctx context.Context, tx Transaction, d *domain.Disbursement) (string, error)

// disbursementWriter runs read-modify-write cycles on a disbursement:
// SELECT ... FOR UPDATE, mutate, versioned UPDATE and outbox event, all in one transaction.
type disbursementWriter struct {
	txManager     TransactionManager
	disbursements DisbursementRepository
	outbox        OutboxRepository
	idGen         IDGenerator
	retrier       Retrier
}

func (w *disbursementWriter) apply(ctx context.Context, id int64, fn mutation) (*domain.Disbursement, error) {
	var out *domain.Disbursement

	err := retry(ctx, w.retrier, func() error {
		d, err := w.applyOnce(ctx, id, fn)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (w *disbursementWriter) applyOnce(ctx context.Context, id int64, fn mutation) (*domain.Disbursement, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := w.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	d, err := w.disbursements.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}

	eventType, err := fn(txCtx, tx, d)
	if err != nil {
		return nil, err
	}

	if err := w.disbursements.Update(txCtx, tx, d); err != nil {
		return nil, err
	}

	if eventType != "" {
		if err := w.emit(txCtx, tx, d, eventType); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return d, nil
}

func (w *disbursementWriter) emit(ctx context.Context, tx Transaction, d *domain.Disbursement, eventType string) error {
	now := time.Now().UTC()
	return w.outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            w.idGen.Generate(),
		AggregateID:   formatID(d.ID),
		AggregateType: domain.AggregateTypeDisbursement,
		EventType:     eventType,
		Payload:       domain.NewDisbursementEvent(d, now),
		CreatedAt:     now,
	})
}

func retry(ctx context.Context, r Retrier, op func() error) error {
	if r == nil {
		return op()
	}
	return r.Retry(ctx, op)
}

// withLock runs fn while holding the per-disbursement lock.
func withLock(ctx context.Context, l Locker, id int64, fn func() error) error {
	if l == nil {
		return fn()
	}
	unlock, err := l.Lock(ctx, DisbursementLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
