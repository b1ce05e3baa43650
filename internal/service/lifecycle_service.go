package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/observability"
	"github.com/spec-kit/maintenance-desk/internal/repository"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// LifecycleService owns ticket creation and status transitions.
type LifecycleService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// LifecycleDependencies bundles repositories for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// TicketCreateInput describes a completed intake form.
type TicketCreateInput struct {
	ReporterID  int64
	Location    domain.Location
	Category    domain.Category
	Description string
	PhotoID     string
}

// TransitionExtra carries the optional data collected with a status change.
// EstimatedDays is read when moving to Claimed, Comment and PhotoID when
// moving to Completed.
type TransitionExtra struct {
	EstimatedDays *int
	Comment       string
	PhotoID       string
}

// allowedTransitions lists the edges of the ticket state machine. Completed
// and Unresolvable have none.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew: {
		domain.TicketStatusClaimed,
		domain.TicketStatusCompleted,
		domain.TicketStatusUnresolvable,
	},
	domain.TicketStatusClaimed: {
		domain.TicketStatusClaimed,
		domain.TicketStatusCompleted,
		domain.TicketStatusUnresolvable,
	},
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets: deps.TicketRepo,
		history: deps.HistoryRepo,
		metrics: deps.Metrics,
		logger:  logger,
		now:     clock,
	}
}

// Create stores a new ticket in status New and returns it with its
// creation event.
func (s *LifecycleService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, events.Event, error) {
	if err := validateCreate(&input); err != nil {
		return nil, events.Event{}, err
	}

	now := s.now()
	ticket := &domain.Ticket{
		ReporterID:  input.ReporterID,
		Location:    input.Location,
		Category:    input.Category,
		Description: input.Description,
		PhotoID:     input.PhotoID,
		Status:      domain.TicketStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, events.Event{}, apperrors.NewInternalError(err)
	}
	s.recordHistory(ctx, ticket.ID, input.ReporterID, "", domain.TicketStatusNew, "", now)
	s.metrics.RecordTransition("", string(domain.TicketStatusNew))

	event := newEvent(events.EventTicketCreated, ticket.ID, input.ReporterID, events.TicketCreatedPayload{
		Category: ticket.Category,
	})
	event.Ticket = *ticket
	event.Timestamp = now
	return ticket, event, nil
}

// Transition moves a ticket to target on behalf of actorID. The ticket is
// locked for the read-modify-write so concurrent transitions cannot lose
// a claimed-at or completed-at stamp.
func (s *LifecycleService) Transition(ctx context.Context, ticketID int64, target domain.TicketStatus, actorID int64, extra TransitionExtra) (*domain.Ticket, events.Event, error) {
	if !target.Valid() {
		return nil, events.Event{}, apperrors.NewValidationError("invalid target status", map[string]any{"status": target})
	}
	if extra.EstimatedDays != nil && *extra.EstimatedDays < 0 {
		return nil, events.Event{}, apperrors.NewValidationError("estimated days must not be negative",
			map[string]any{"estimated_days": *extra.EstimatedDays})
	}
	if actorID == 0 {
		return nil, events.Event{}, apperrors.NewValidationError("actor id is required", nil)
	}

	var previous domain.TicketStatus
	now := s.now()
	ticket, err := s.tickets.Update(ctx, ticketID, func(t *domain.Ticket) error {
		if !CanTransition(t.Status, target) {
			return apperrors.NewInvalidTransition(string(t.Status), string(target))
		}
		previous = t.Status
		applyTransition(t, target, actorID, extra, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, events.Event{}, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, events.Event{}, apperrors.MapError(err)
	}

	s.recordHistory(ctx, ticket.ID, actorID, previous, target, extra.Comment, now)
	s.metrics.RecordTransition(string(previous), string(target))

	event := newEvent(events.EventTicketStatusChanged, ticket.ID, actorID, events.TicketStatusChangedPayload{
		OldStatus: previous,
		NewStatus: target,
	})
	event.Ticket = *ticket
	event.Timestamp = now
	return ticket, event, nil
}

// Get returns a ticket by id.
func (s *LifecycleService) Get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// ListRecent returns the newest tickets across all categories.
func (s *LifecycleService) ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Limit: limit})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// ListByReporter returns the newest tickets filed by reporterID.
func (s *LifecycleService) ListByReporter(ctx context.Context, reporterID int64, limit int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{ReporterID: &reporterID, Limit: limit})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// History returns the status log of a ticket, oldest first.
func (s *LifecycleService) History(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func applyTransition(t *domain.Ticket, target domain.TicketStatus, actorID int64, extra TransitionExtra, now time.Time) {
	actor := actorID
	t.ResponsibleID = &actor

	switch target {
	case domain.TicketStatusClaimed:
		if t.ClaimedAt == nil {
			stamped := now
			t.ClaimedAt = &stamped
		}
		if t.SpecialistID == nil {
			claimer := actorID
			t.SpecialistID = &claimer
		}
		if extra.EstimatedDays != nil {
			days := *extra.EstimatedDays
			t.EstimatedDays = &days
		}
	case domain.TicketStatusCompleted:
		if t.CompletedAt == nil {
			stamped := now
			t.CompletedAt = &stamped
		}
		if comment := strings.TrimSpace(extra.Comment); comment != "" {
			t.CompletionComment = comment
		}
		if extra.PhotoID != "" {
			t.CompletionPhotoID = extra.PhotoID
		}
	}

	t.Status = target
	t.UpdatedAt = now
}

// recordHistory appends an audit entry for a change that is already
// committed. A failed append is logged; the change and its event stand.
func (s *LifecycleService) recordHistory(ctx context.Context, ticketID, actorID int64, oldStatus, newStatus domain.TicketStatus, note string, at time.Time) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:  ticketID,
		ActorID:   actorID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      strings.TrimSpace(note),
		CreatedAt: at,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("ticket history append failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("new_status", string(newStatus)),
			zap.Error(err))
	}
}

func validateCreate(input *TicketCreateInput) error {
	if input.ReporterID == 0 {
		return apperrors.NewValidationError("reporter id is required", nil)
	}
	if !input.Category.Valid() {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	input.Location.Queue = strings.TrimSpace(input.Location.Queue)
	input.Location.Entrance = strings.TrimSpace(input.Location.Entrance)
	input.Location.Floor = strings.TrimSpace(input.Location.Floor)
	if input.Location.Queue == "" {
		return apperrors.NewValidationError("queue is required", nil)
	}
	if !IsDigits(input.Location.Entrance) {
		return apperrors.NewValidationError("entrance must be a number", map[string]any{"entrance": input.Location.Entrance})
	}
	if input.Location.Floor != domain.FloorCommonArea && !IsDigits(input.Location.Floor) {
		return apperrors.NewValidationError("floor must be a number or common area", map[string]any{"floor": input.Location.Floor})
	}

	input.Description = strings.TrimSpace(input.Description)
	if input.Category.FreeText() {
		if input.Description == "" {
			return apperrors.NewValidationError("description is required for this category", nil)
		}
	} else if input.Description == "" {
		input.Description = string(input.Category)
	}
	return nil
}

// IsDigits reports whether s is a non-empty run of decimal digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func newEvent(eventType events.EventType, ticketID, actorID int64, payload interface{}) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
