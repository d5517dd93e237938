package events

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated            EventType = "request_created"
	EventRequestStatusChanged      EventType = "request_status_changed"
	EventRequestTechnicianAssigned EventType = "request_technician_assigned"
	// EventRequestWriteFailed reports a durable write that failed after the
	// caller already received its optimistic copy of the record.
	EventRequestWriteFailed EventType = "request_write_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	DeviceType   domain.DeviceType `json:"device_type"`
	CustomerName string            `json:"customer_name"`
	Status       domain.RequestStatus `json:"status"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
	Cost      *float64             `json:"cost,omitempty"`
}

// RequestTechnicianAssignedPayload payload.
type RequestTechnicianAssignedPayload struct {
	TechnicianID string `json:"technician_id"`
}

// RequestWriteFailedPayload payload. Operation is the write that failed
// ("create", "update_status", ...); Reason carries the store error text.
type RequestWriteFailedPayload struct {
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}
