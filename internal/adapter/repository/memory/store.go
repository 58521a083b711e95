// Package memory is an in-process implementation of the repositories used by
// the sandbox server mode and by use-case tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// state is everything the store holds. A transaction works on a private copy
// that replaces the shared one on commit.
type state struct {
	disbursements map[int64]*domain.Disbursement
	reviews       map[int64]*domain.ReconciliationReview
	logs          []*domain.ReconciliationLogEntry
	runs          map[int64]*domain.PaymentRun
	invoices      map[int64]*domain.Invoice
	outbox        []*domain.OutboxEvent

	nextDisbursementID int64
	nextReviewID       int64
	nextLogID          int64
}

func newState() *state {
	return &state{
		disbursements: make(map[int64]*domain.Disbursement),
		reviews:       make(map[int64]*domain.ReconciliationReview),
		runs:          make(map[int64]*domain.PaymentRun),
		invoices:      make(map[int64]*domain.Invoice),
	}
}

func (s *state) clone() *state {
	c := &state{
		disbursements:      make(map[int64]*domain.Disbursement, len(s.disbursements)),
		reviews:            make(map[int64]*domain.ReconciliationReview, len(s.reviews)),
		logs:               make([]*domain.ReconciliationLogEntry, len(s.logs)),
		runs:               make(map[int64]*domain.PaymentRun, len(s.runs)),
		invoices:           make(map[int64]*domain.Invoice, len(s.invoices)),
		outbox:             make([]*domain.OutboxEvent, len(s.outbox)),
		nextDisbursementID: s.nextDisbursementID,
		nextReviewID:       s.nextReviewID,
		nextLogID:          s.nextLogID,
	}
	for id, d := range s.disbursements {
		c.disbursements[id] = d.Clone()
	}
	for id, r := range s.reviews {
		c.reviews[id] = r.Clone()
	}
	// log entries, outbox events, runs and invoices are replaced, never mutated in place
	copy(c.logs, s.logs)
	copy(c.outbox, s.outbox)
	for id, r := range s.runs {
		c.runs[id] = r
	}
	for id, inv := range s.invoices {
		c.invoices[id] = inv
	}
	return c
}

// Hooks inject failures into store operations. A non-nil error returned by a
// hook fails the operation, which rolls back the surrounding transaction.
type Hooks struct {
	BeforeDisbursementUpdate func(d *domain.Disbursement) error
	BeforeReviewUpdate       func(r *domain.ReconciliationReview) error
	BeforeLogCreate          func(e *domain.ReconciliationLogEntry) error
	BeforeMarkPaid           func(invoiceID int64) error
	BeforeRunUpdate          func(runID int64, status domain.PaymentRunStatus) error
}

// Store holds all repositories in memory. Transactions are serialized: Begin
// waits until the previous transaction committed or rolled back.
type Store struct {
	mu    sync.RWMutex
	data  *state
	hooks Hooks

	// txSlot is a one-slot semaphore; holding it means owning the write path.
	txSlot chan struct{}

	vendors map[int64]*domain.VendorPaymentDetails
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		data:    newState(),
		txSlot:  make(chan struct{}, 1),
		vendors: make(map[int64]*domain.VendorPaymentDetails),
	}
}

// SetHooks replaces the failure injection hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store) currentHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

// Begin implements usecase.TransactionManager.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	return &Tx{store: s, state: snapshot}, nil
}

// read runs fn against the committed state.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Tx is a memory transaction.
type Tx struct {
	store *Store
	state *state
	done  bool
}

// Commit publishes the transaction's state.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("memory: transaction already closed")
	}
	t.store.mu.Lock()
	t.store.data = t.state
	t.store.mu.Unlock()
	t.finish()
	return nil
}

// Rollback discards the transaction's state. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	<-t.store.txSlot
}

func txState(tx usecase.Transaction) (*state, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, errForeignTx
	}
	return t.state, nil
}

// Disbursements returns the disbursement repository.
func (s *Store) Disbursements() *DisbursementRepository { return &DisbursementRepository{store: s} }

// Reviews returns the review repository.
func (s *Store) Reviews() *ReviewRepository { return &ReviewRepository{store: s} }

// Logs returns the reconciliation log repository.
func (s *Store) Logs() *LogRepository { return &LogRepository{store: s} }

// Runs returns the payment run repository.
func (s *Store) Runs() *RunRepository { return &RunRepository{store: s} }

// Invoices returns the invoice collaborator.
func (s *Store) Invoices() *InvoiceStore { return &InvoiceStore{store: s} }

// Vendors returns the vendor collaborator.
func (s *Store) Vendors() *VendorStore { return &VendorStore{store: s} }

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

var _ usecase.TransactionManager = (*Store)(nil)
