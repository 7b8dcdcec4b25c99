package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusPublished  OutboxStatus = "PUBLISHED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

type AggregateType string

const (
	AggregateBooking    AggregateType = "booking"
	AggregateAssignment AggregateType = "assignment"
)

// OutboxEvent is a domain event waiting to be relayed.
type OutboxEvent struct {
	BaseSimple
	AggregateType AggregateType   `db:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	SchemaVersion int             `db:"schema_version"`
	Payload       json.RawMessage `db:"payload"`
	Status        OutboxStatus    `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	AvailableAt   time.Time       `db:"available_at"`
	ClaimedAt     *time.Time      `db:"claimed_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}
