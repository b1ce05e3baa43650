package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/repository"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// DirectoryService resolves identities to roles and categories to specialists.
type DirectoryService struct {
	accounts    repository.AccountRepository
	assignments repository.AssignmentRepository
	tickets     repository.TicketRepository
	moderators  map[string]struct{}
	logger      *zap.Logger
}

// DirectoryDependencies bundles repositories for the directory.
type DirectoryDependencies struct {
	AccountRepo    repository.AccountRepository
	AssignmentRepo repository.AssignmentRepository
	TicketRepo     repository.TicketRepository
	Moderators     []string
	Logger         *zap.Logger
}

// AccountInput is what an inbound action tells us about its sender.
// Role is only applied when set.
type AccountInput struct {
	ID     int64
	Handle string
	Name   string
	Role   *domain.Role
}

// SpecialistContact is an assigned handle plus the account id it resolves
// to, if the specialist has interacted with the bot.
type SpecialistContact struct {
	Handle    string
	AccountID *int64
}

// NewDirectoryService constructs the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	moderators := make(map[string]struct{}, len(deps.Moderators))
	for _, handle := range deps.Moderators {
		if h := domain.NormalizeHandle(handle); h != "" {
			moderators[h] = struct{}{}
		}
	}
	return &DirectoryService{
		accounts:    deps.AccountRepo,
		assignments: deps.AssignmentRepo,
		tickets:     deps.TicketRepo,
		moderators:  moderators,
		logger:      logger,
	}
}

// UpsertAccount creates the account on first sight and refreshes it after.
// Empty handle or name keep the stored values; the role only changes when
// input.Role is set, or when a resident's handle already has category
// assignments, in which case it is promoted to specialist.
func (s *DirectoryService) UpsertAccount(ctx context.Context, input AccountInput) (*domain.Account, error) {
	if input.ID == 0 {
		return nil, apperrors.NewValidationError("account id is required", nil)
	}
	if input.Role != nil && !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *input.Role})
	}

	account, err := s.accounts.GetByID(ctx, input.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		account = &domain.Account{ID: input.ID, Role: domain.RoleResident}
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}

	if handle := domain.NormalizeHandle(input.Handle); handle != "" {
		account.Handle = handle
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		account.Name = name
	}
	if input.Role != nil {
		account.Role = *input.Role
	} else if account.Role == domain.RoleResident && account.Handle != "" {
		assigned, err := s.assignments.ListByHandle(ctx, account.Handle)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if len(assigned) > 0 {
			account.Role = domain.RoleSpecialist
		}
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

// Touch upserts the sender of an inbound action and applies the moderator
// allow-list: a listed handle that is not yet a manager becomes one.
func (s *DirectoryService) Touch(ctx context.Context, id int64, handle, name string) (*domain.Account, error) {
	account, err := s.UpsertAccount(ctx, AccountInput{ID: id, Handle: handle, Name: name})
	if err != nil {
		return nil, err
	}
	if !s.IsModerator(account.Handle) || account.Role == domain.RoleManager {
		return account, nil
	}
	manager := domain.RoleManager
	return s.UpsertAccount(ctx, AccountInput{ID: id, Role: &manager})
}

// IsModerator reports whether handle is on the configured allow-list.
func (s *DirectoryService) IsModerator(handle string) bool {
	handle = domain.NormalizeHandle(handle)
	if handle == "" {
		return false
	}
	_, ok := s.moderators[handle]
	return ok
}

// SetRole changes the role of the account holding handle. When nobody with
// that handle has interacted yet a NOT_FOUND error is returned and nothing
// is remembered for later.
func (s *DirectoryService) SetRole(ctx context.Context, handle string, role domain.Role) (*domain.Account, error) {
	handle = domain.NormalizeHandle(handle)
	if handle == "" {
		return nil, apperrors.NewValidationError("handle is required", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	account, err := s.accounts.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"handle": handle})
		}
		return nil, apperrors.NewInternalError(err)
	}
	account.Role = role
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

// SeedModerators grants the manager role to every configured handle that
// already has an account. Absent handles are logged and skipped.
func (s *DirectoryService) SeedModerators(ctx context.Context) (int, error) {
	seeded := 0
	for handle := range s.moderators {
		_, err := s.SetRole(ctx, handle, domain.RoleManager)
		switch {
		case err == nil:
			seeded++
		case apperrors.IsNotFound(err):
			s.logger.Info("moderator has not interacted yet", zap.String("handle", handle))
		default:
			return seeded, err
		}
	}
	return seeded, nil
}

// FindByHandle returns nil without error when no account holds handle.
func (s *DirectoryService) FindByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	handle = domain.NormalizeHandle(handle)
	if handle == "" {
		return nil, nil
	}
	account, err := s.accounts.GetByHandle(ctx, handle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

// FindByID returns nil without error when the id is unknown.
func (s *DirectoryService) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

// AssignSpecialist adds handle to the specialists of category. Repeating an
// existing pair returns the stored assignment. If the handle already belongs
// to a resident account, that account is promoted to specialist.
func (s *DirectoryService) AssignSpecialist(ctx context.Context, actorID int64, category domain.Category, handle string) (*domain.CategoryAssignment, events.Event, error) {
	handle = domain.NormalizeHandle(handle)
	if !category.Valid() {
		return nil, events.Event{}, apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	if handle == "" {
		return nil, events.Event{}, apperrors.NewValidationError("handle is required", nil)
	}

	assignment, created, err := s.assignments.Add(ctx, category, handle)
	if err != nil {
		return nil, events.Event{}, apperrors.NewInternalError(err)
	}

	account, err := s.FindByHandle(ctx, handle)
	if err != nil {
		return nil, events.Event{}, err
	}
	if account != nil && account.Role == domain.RoleResident {
		account.Role = domain.RoleSpecialist
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, events.Event{}, apperrors.NewInternalError(err)
		}
	}

	event := newEvent(events.EventSpecialistAssigned, 0, actorID, events.SpecialistAssignedPayload{
		Category: category,
		Handle:   handle,
		Created:  created,
	})
	return assignment, event, nil
}

// SpecialistsFor returns the handles assigned to category, empty when none.
func (s *DirectoryService) SpecialistsFor(ctx context.Context, category domain.Category) ([]string, error) {
	assignments, err := s.ListAssignments(ctx, category)
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		handles = append(handles, a.Handle)
	}
	return handles, nil
}

// ListAssignments returns the assignment rows of category in insertion order.
func (s *DirectoryService) ListAssignments(ctx context.Context, category domain.Category) ([]domain.CategoryAssignment, error) {
	if !category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	assignments, err := s.assignments.ListByCategory(ctx, category)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return assignments, nil
}

// SpecialistContacts resolves the specialists of category to account ids.
func (s *DirectoryService) SpecialistContacts(ctx context.Context, category domain.Category) ([]SpecialistContact, error) {
	handles, err := s.SpecialistsFor(ctx, category)
	if err != nil {
		return nil, err
	}
	contacts := make([]SpecialistContact, 0, len(handles))
	for _, handle := range handles {
		contact := SpecialistContact{Handle: handle}
		account, err := s.FindByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if account != nil {
			id := account.ID
			contact.AccountID = &id
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// OpenTicketsFor lists New and Claimed tickets in the categories handle is
// assigned to, newest first. limit <= 0 means no limit.
func (s *DirectoryService) OpenTicketsFor(ctx context.Context, handle string, limit int) ([]domain.Ticket, error) {
	handle = domain.NormalizeHandle(handle)
	if handle == "" {
		return []domain.Ticket{}, nil
	}
	assignments, err := s.assignments.ListByHandle(ctx, handle)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(assignments) == 0 {
		return []domain.Ticket{}, nil
	}
	categories := make([]domain.Category, 0, len(assignments))
	for _, a := range assignments {
		categories = append(categories, a.Category)
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Categories: categories,
		Statuses:   domain.OpenStatuses,
		Limit:      limit,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// CanHandle reports whether handle is assigned to category.
func (s *DirectoryService) CanHandle(ctx context.Context, handle string, category domain.Category) (bool, error) {
	assignments, err := s.assignments.ListByHandle(ctx, domain.NormalizeHandle(handle))
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	for _, a := range assignments {
		if a.Category == category {
			return true, nil
		}
	}
	return false, nil
}
