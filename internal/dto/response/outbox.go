package response

import (
	"encoding/json"
	"time"

	"transport-booking/internal/data/entity"
)

type OutboxEventResponse struct {
	ID            string              `json:"id"`
	TenantID      string              `json:"tenant_id"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	EventType     string              `json:"event_type"`
	SchemaVersion int                 `json:"schema_version"`
	Payload       json.RawMessage     `json:"payload"`
	Status        entity.OutboxStatus `json:"status"`
	RetryCount    int                 `json:"retry_count"`
	LastError     *string             `json:"last_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func OutboxEventToResponse(e *entity.OutboxEvent) OutboxEventResponse {
	return OutboxEventResponse{
		ID:            e.ID.String(),
		TenantID:      e.TenantID.String(),
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID.String(),
		EventType:     e.EventType,
		SchemaVersion: e.SchemaVersion,
		Payload:       e.Payload,
		Status:        e.Status,
		RetryCount:    e.RetryCount,
		LastError:     e.LastError,
		CreatedAt:     e.CreatedAt,
	}
}
