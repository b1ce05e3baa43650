package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-desk/internal/api/dto"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/service"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TicketsHandler exposes read access to tickets for operators and the gateway.
type TicketsHandler struct {
	service *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{service: lifecycle}
}

// ListTickets GET /v1/tickets. With reporter_id only that reporter's
// tickets are returned.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		tickets []domain.Ticket
		err     error
	)
	if raw := c.Query("reporter_id"); raw != "" {
		reporterID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || reporterID <= 0 {
			return apperrors.NewValidationError("reporter_id must be a positive integer", nil)
		}
		tickets, err = h.service.ListByReporter(c.UserContext(), reporterID, limit)
	} else {
		tickets, err = h.service.ListRecent(c.UserContext(), limit)
	}
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("ticket id must be a positive integer", nil)
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, history)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		ReporterID:    ticket.ReporterID,
		Category:      ticket.Category,
		Status:        ticket.Status,
		StatusLabel:   ticket.Status.Label(),
		ResponsibleID: ticket.ResponsibleID,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, history []domain.TicketHistory) dto.TicketDetailResponse {
	entries := make([]dto.TicketHistoryResponse, 0, len(history))
	for _, h := range history {
		entries = append(entries, dto.TicketHistoryResponse{
			ID:        h.ID,
			ActorID:   h.ActorID,
			OldStatus: h.OldStatus,
			NewStatus: h.NewStatus,
			Note:      h.Note,
			CreatedAt: h.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		ID:            ticket.ID,
		ReporterID:    ticket.ReporterID,
		SpecialistID:  ticket.SpecialistID,
		ResponsibleID: ticket.ResponsibleID,
		Location: dto.LocationResponse{
			Queue:    ticket.Location.Queue,
			Entrance: ticket.Location.Entrance,
			Floor:    ticket.Location.Floor,
		},
		Category:          ticket.Category,
		Description:       ticket.Description,
		PhotoID:           ticket.PhotoID,
		Status:            ticket.Status,
		StatusLabel:       ticket.Status.Label(),
		ClaimedAt:         ticket.ClaimedAt,
		EstimatedDays:     ticket.EstimatedDays,
		CompletedAt:       ticket.CompletedAt,
		CompletionComment: ticket.CompletionComment,
		CompletionPhotoID: ticket.CompletionPhotoID,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		History:           entries,
	}
}
