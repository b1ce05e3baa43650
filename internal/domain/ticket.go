package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew          TicketStatus = "NEW"
	TicketStatusClaimed      TicketStatus = "CLAIMED"
	TicketStatusCompleted    TicketStatus = "COMPLETED"
	TicketStatusUnresolvable TicketStatus = "UNRESOLVABLE"
)

var statusLabels = map[TicketStatus]string{
	TicketStatusNew:          "Новая",
	TicketStatusClaimed:      "Взята в работу",
	TicketStatusCompleted:    "Выполнено",
	TicketStatusUnresolvable: "Проблема не выявлена",
}

// Label returns the user-facing name of the status.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusUnresolvable
}

// OpenStatuses are the statuses a specialist can still act on.
var OpenStatuses = []TicketStatus{TicketStatusNew, TicketStatusClaimed}

// FloorCommonArea marks a problem in shared building property rather than on a floor.
const FloorCommonArea = "Общедомовое"

// Location pins a ticket to a place in the building complex.
type Location struct {
	Queue    string
	Entrance string
	Floor    string
}

// Ticket is a single reported maintenance problem.
type Ticket struct {
	ID                int64
	ReporterID        int64
	SpecialistID      *int64
	ResponsibleID     *int64
	Location          Location
	Category          Category
	Description       string
	PhotoID           string
	CompletionComment string
	CompletionPhotoID string
	ClaimedAt         *time.Time
	EstimatedDays     *int
	CompletedAt       *time.Time
	Status            TicketStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DurationUnknown reports whether the estimate was recorded as 0 ("unknown").
func (t *Ticket) DurationUnknown() bool {
	return t.EstimatedDays != nil && *t.EstimatedDays == 0
}
