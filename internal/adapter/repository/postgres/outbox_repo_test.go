package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/domain"
)

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &OutboxRepository{db: mock}
	tx := beginTx(t, mock)

	event := &domain.OutboxEvent{
		ID:            "01JNXK0000000000000000000A",
		AggregateID:   "42",
		AggregateType: domain.AggregateTypeDisbursement,
		EventType:     domain.EventTypeDisbursementConfirmed,
		Payload:       map[string]any{"status": "CONFIRMED"},
		CreatedAt:     time.Now().UTC(),
	}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(event.ID, "42", "disbursement", "disbursement.confirmed",
			[]byte(`{"status":"CONFIRMED"}`), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(ctx, tx, event))
	assertExpectations(t, mock)
}

func TestOutboxRepository_GetUnpublishedAndMark(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &OutboxRepository{db: mock}
	now := time.Now().UTC()

	mock.ExpectQuery("FROM outbox_events WHERE published = FALSE").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow("e1", "42", "disbursement", "disbursement.failed", []byte(`{"reason":"R01"}`), now, nil, false))

	events, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "R01", events[0].Payload["reason"])
	assert.Nil(t, events[0].PublishedAt)

	mock.ExpectExec("UPDATE outbox_events SET published = TRUE").
		WithArgs("e1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkPublished(ctx, "e1", now))

	mock.ExpectExec("DELETE FROM outbox_events").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	require.NoError(t, repo.DeletePublished(ctx, now.Add(-time.Hour)))

	assertExpectations(t, mock)
}
