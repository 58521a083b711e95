package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/vendorpay/internal/domain"
	"github.com/iho/vendorpay/internal/usecase"
)

// LogRepository implements usecase.ReconciliationLogRepository.
type LogRepository struct {
	store *Store
}

func (r *LogRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.ReconciliationLogEntry) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	if hook := r.store.currentHooks().BeforeLogCreate; hook != nil {
		if err := hook(entry); err != nil {
			return err
		}
	}
	st.nextLogID++
	entry.ID = st.nextLogID
	e := *entry
	st.logs = append(st.logs, &e)
	return nil
}

func (r *LogRepository) ListByDisbursement(ctx context.Context, disbursementID int64) ([]*domain.ReconciliationLogEntry, error) {
	var out []*domain.ReconciliationLogEntry
	r.store.read(func(st *state) {
		for _, e := range st.logs {
			if e.DisbursementID == disbursementID {
				c := *e
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

// RunRepository implements usecase.PaymentRunRepository.
type RunRepository struct {
	store *Store
}

func (r *RunRepository) GetByID(ctx context.Context, id int64) (*domain.PaymentRun, error) {
	var out *domain.PaymentRun
	r.store.read(func(st *state) {
		if run, ok := st.runs[id]; ok {
			c := *run
			out = &c
		}
	})
	if out == nil {
		return nil, domain.ErrPaymentRunNotFound
	}
	return out, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id int64, status domain.PaymentRunStatus, at time.Time) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	if hook := r.store.currentHooks().BeforeRunUpdate; hook != nil {
		if err := hook(id, status); err != nil {
			return err
		}
	}
	run, ok := st.runs[id]
	if !ok {
		return domain.ErrPaymentRunNotFound
	}
	c := *run
	c.Status = status
	c.UpdatedAt = at
	if status == domain.RunStatusExecuted || status == domain.RunStatusPartiallyExecuted {
		c.ExecutedAt = &at
	}
	st.runs[id] = &c
	return nil
}

// Put stores run as committed. It is meant for seeding.
func (r *RunRepository) Put(run *domain.PaymentRun) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *run
	r.store.data.runs[run.ID] = &c
}

// InvoiceStore implements usecase.InvoiceStore.
type InvoiceStore struct {
	store *Store
}

func (s *InvoiceStore) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var out *domain.Invoice
	s.store.read(func(st *state) {
		if inv, ok := st.invoices[id]; ok {
			c := *inv
			out = &c
		}
	})
	if out == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return out, nil
}

func (s *InvoiceStore) MarkPaid(ctx context.Context, tx usecase.Transaction, id int64, at time.Time) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	if hook := s.store.currentHooks().BeforeMarkPaid; hook != nil {
		if err := hook(id); err != nil {
			return err
		}
	}
	inv, ok := st.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	c := *inv
	c.Status = domain.InvoicePaid
	st.invoices[id] = &c
	return nil
}

// Put stores inv as committed. It is meant for seeding.
func (s *InvoiceStore) Put(inv *domain.Invoice) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	c := *inv
	s.store.data.invoices[inv.ID] = &c
}

// VendorStore implements usecase.VendorStore. Vendor profiles are not
// transactional in this engine.
type VendorStore struct {
	store *Store
}

func (s *VendorStore) GetVendorPaymentDetails(ctx context.Context, vendorID int64) (*domain.VendorPaymentDetails, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	v, ok := s.store.vendors[vendorID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrVendorNotFound, vendorID)
	}
	c := *v
	return &c, nil
}

// Put stores v. It is meant for seeding.
func (s *VendorStore) Put(v *domain.VendorPaymentDetails) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	c := *v
	s.store.vendors[v.VendorID] = &c
}

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	st, err := txState(tx)
	if err != nil {
		return err
	}
	e := *event
	st.outbox = append(st.outbox, &e)
	return nil
}

func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	r.store.read(func(st *state) {
		for _, e := range st.outbox {
			if e.Published {
				continue
			}
			c := *e
			out = append(out, &c)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, e := range r.store.data.outbox {
		if e.ID == id {
			c := *e
			c.Published = true
			c.PublishedAt = &publishedAt
			r.store.data.outbox[i] = &c
			return nil
		}
	}
	return nil
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.data.outbox[:0:0]
	for _, e := range r.store.data.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	r.store.data.outbox = kept
	return nil
}

// Events returns every outbox event of eventType, published or not.
func (r *OutboxRepository) Events(eventType string) []*domain.OutboxEvent {
	var out []*domain.OutboxEvent
	r.store.read(func(st *state) {
		for _, e := range st.outbox {
			if eventType == "" || e.EventType == eventType {
				c := *e
				out = append(out, &c)
			}
		}
	})
	return out
}

var (
	_ usecase.ReconciliationLogRepository = (*LogRepository)(nil)
	_ usecase.PaymentRunRepository        = (*RunRepository)(nil)
	_ usecase.InvoiceStore                = (*InvoiceStore)(nil)
	_ usecase.VendorStore                 = (*VendorStore)(nil)
	_ usecase.OutboxRepository            = (*OutboxRepository)(nil)
)
