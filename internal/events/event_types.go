package events

import (
	"time"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventSpecialistAssigned  EventType = "specialist_assigned"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	TicketID  int64         `json:"ticket_id,omitempty"`
	ActorID   int64         `json:"actor_id"`
	Timestamp time.Time     `json:"timestamp"`
	Ticket    domain.Ticket `json:"-"`
	Payload   interface{}   `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category domain.Category `json:"category"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// SpecialistAssignedPayload payload.
type SpecialistAssignedPayload struct {
	Category domain.Category `json:"category"`
	Handle   string          `json:"handle"`
	Created  bool            `json:"created"`
}

// StatusChange extracts the transition carried by a status event.
func (e Event) StatusChange() (TicketStatusChangedPayload, bool) {
	p, ok := e.Payload.(TicketStatusChangedPayload)
	return p, ok
}
