package domain

import "time"

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID        int64
	TicketID  int64
	ActorID   int64
	OldStatus TicketStatus
	NewStatus TicketStatus
	Note      string
	CreatedAt time.Time
}
