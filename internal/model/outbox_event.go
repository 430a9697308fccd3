package model

import "time"

// OutboxEvent is a row of the outbox table; Debezium routes it to Kafka by
// its topic column.
type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // "customer"
	AggregateID string    `db:"aggregate_id"` // customer id
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}
