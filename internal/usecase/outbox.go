package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/event"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("transport-booking/usecase")

// newOutboxEvent builds a pending outbox row for payload. The row becomes
// claimable immediately.
func newOutboxEvent(tenantID uuid.UUID, aggType entity.AggregateType, aggID uuid.UUID, payload event.Payload, now time.Time) (*entity.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", payload.EventType(), err)
	}

	evt := &entity.OutboxEvent{
		AggregateType: aggType,
		AggregateID:   aggID,
		EventType:     string(payload.EventType()),
		SchemaVersion: event.SchemaVersion,
		Payload:       body,
		Status:        entity.OutboxStatusPending,
		AvailableAt:   now,
	}
	evt.ID = uuid.New()
	evt.TenantID = tenantID
	evt.CreatedAt = now
	return evt, nil
}
