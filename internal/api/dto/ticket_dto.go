package dto

import (
	"time"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// LocationResponse is where a ticket's problem is.
type LocationResponse struct {
	Queue    string `json:"queue"`
	Entrance string `json:"entrance"`
	Floor    string `json:"floor"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            int64               `json:"id"`
	ReporterID    int64               `json:"reporter_id"`
	Category      domain.Category     `json:"category"`
	Status        domain.TicketStatus `json:"status"`
	StatusLabel   string              `json:"status_label"`
	ResponsibleID *int64              `json:"responsible_id"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                int64                   `json:"id"`
	ReporterID        int64                   `json:"reporter_id"`
	SpecialistID      *int64                  `json:"specialist_id"`
	ResponsibleID     *int64                  `json:"responsible_id"`
	Location          LocationResponse        `json:"location"`
	Category          domain.Category         `json:"category"`
	Description       string                  `json:"description"`
	PhotoID           string                  `json:"photo_id,omitempty"`
	Status            domain.TicketStatus     `json:"status"`
	StatusLabel       string                  `json:"status_label"`
	ClaimedAt         *time.Time              `json:"claimed_at"`
	EstimatedDays     *int                    `json:"estimated_days"`
	CompletedAt       *time.Time              `json:"completed_at"`
	CompletionComment string                  `json:"completion_comment,omitempty"`
	CompletionPhotoID string                  `json:"completion_photo_id,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	History           []TicketHistoryResponse `json:"history"`
}

// TicketHistoryResponse is one recorded status change.
type TicketHistoryResponse struct {
	ID        int64               `json:"id"`
	ActorID   int64               `json:"actor_id"`
	OldStatus domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Note      string              `json:"note,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
