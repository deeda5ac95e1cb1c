package events

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventCalendarChanged     EventType = "calendar_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ChangedAt time.Time           `json:"changed_at"`
}

// CalendarChangedPayload payload. Year is zero when a business-hours rule
// changed rather than a holiday.
type CalendarChangedPayload struct {
	Year int `json:"year,omitempty"`
}
