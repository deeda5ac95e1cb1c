package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusInReview    TicketStatus = "IN_REVIEW"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the support-request record as read from the ticketing subsystem.
// This service never mutates tickets; it only accounts SLA time against them.
type Ticket struct {
	ID              string
	ExternalKey     string
	Status          TicketStatus
	Priority        TicketPriority
	OpenedAt        time.Time
	FirstResponseAt *time.Time
	CompletedAt     *time.Time
}

// IsFinal reports whether the ticket reached a terminal status.
func (t *Ticket) IsFinal() bool {
	switch t.Status {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}
