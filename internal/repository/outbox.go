package repository

import (
	"context"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Append writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Append(ctx context.Context, tx *sqlx.Tx, evt model.OutboxEvent) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// Append adds an event row to outbox. Debezium Outbox SMT will pick it up and
// publish to Kafka based on the `topic` column, keyed by aggregate_id so one
// customer's decisions stay ordered within a partition.
func (r *OutboxRepositoryImpl) Append(ctx context.Context, tx *sqlx.Tx, evt model.OutboxEvent) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, evt.Aggregate, evt.AggregateID, evt.Topic, evt.Payload)

		return err
	})
}
