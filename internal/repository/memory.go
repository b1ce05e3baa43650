package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// In-memory implementations back the service when no POSTGRES_DSN is
// configured and serve as fakes in tests. Every read returns a copy so
// callers never alias stored records.

var (
	_ AccountRepository       = (*MemoryAccountRepository)(nil)
	_ AssignmentRepository    = (*MemoryAssignmentRepository)(nil)
	_ TicketRepository        = (*MemoryTicketRepository)(nil)
	_ TicketHistoryRepository = (*MemoryTicketHistoryRepository)(nil)
)

// MemoryAccountRepository keeps accounts in a map keyed by id.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]domain.Account
}

// NewMemoryAccountRepository returns an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[int64]domain.Account)}
}

func (r *MemoryAccountRepository) Save(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if account.Handle != "" {
		for id, other := range r.accounts {
			if id != account.ID && other.Handle == account.Handle {
				other.Handle = ""
				other.UpdatedAt = now
				r.accounts[id] = other
			}
		}
	}
	if existing, ok := r.accounts[account.ID]; ok {
		account.CreatedAt = existing.CreatedAt
	} else {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handle == "" {
		return nil, ErrNotFound
	}
	for _, account := range r.accounts {
		if account.Handle == handle {
			found := account
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// MemoryAssignmentRepository keeps assignments as an ordered set of pairs.
type MemoryAssignmentRepository struct {
	mu          sync.RWMutex
	nextID      int64
	assignments []domain.CategoryAssignment
}

// NewMemoryAssignmentRepository returns an empty repository.
func NewMemoryAssignmentRepository() *MemoryAssignmentRepository {
	return &MemoryAssignmentRepository{}
}

func (r *MemoryAssignmentRepository) Add(_ context.Context, category domain.Category, handle string) (*domain.CategoryAssignment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments {
		if existing.Category == category && existing.Handle == handle {
			found := existing
			return &found, false, nil
		}
	}
	r.nextID++
	assignment := domain.CategoryAssignment{
		ID:        r.nextID,
		Category:  category,
		Handle:    handle,
		CreatedAt: time.Now().UTC(),
	}
	r.assignments = append(r.assignments, assignment)
	return &assignment, true, nil
}

func (r *MemoryAssignmentRepository) ListByCategory(_ context.Context, category domain.Category) ([]domain.CategoryAssignment, error) {
	return r.filter(func(a domain.CategoryAssignment) bool { return a.Category == category }), nil
}

func (r *MemoryAssignmentRepository) ListByHandle(_ context.Context, handle string) ([]domain.CategoryAssignment, error) {
	return r.filter(func(a domain.CategoryAssignment) bool { return a.Handle == handle }), nil
}

func (r *MemoryAssignmentRepository) filter(keep func(domain.CategoryAssignment) bool) []domain.CategoryAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.CategoryAssignment
	for _, a := range r.assignments {
		if keep(a) {
			result = append(result, a)
		}
	}
	return result
}

// MemoryTicketRepository keeps tickets in a map with a monotonic id counter.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]*domain.Ticket
}

// NewMemoryTicketRepository returns an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[int64]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTicket(ticket), nil
}

// Update holds the repository lock for the whole read-modify-write, which
// gives the same isolation as the row lock in the Postgres implementation.
func (r *MemoryTicketRepository) Update(_ context.Context, id int64, mutate TicketMutation) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneTicket(stored)
	if err := mutate(working); err != nil {
		return nil, err
	}
	r.tickets[id] = cloneTicket(working)
	return working, nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	categories := make(map[domain.Category]struct{}, len(filter.Categories))
	for _, c := range filter.Categories {
		categories[c] = struct{}{}
	}
	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = struct{}{}
	}

	result := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if filter.ReporterID != nil && ticket.ReporterID != *filter.ReporterID {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[ticket.Category]; !ok {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[ticket.Status]; !ok {
				continue
			}
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	if t.SpecialistID != nil {
		v := *t.SpecialistID
		c.SpecialistID = &v
	}
	if t.ResponsibleID != nil {
		v := *t.ResponsibleID
		c.ResponsibleID = &v
	}
	if t.ClaimedAt != nil {
		v := *t.ClaimedAt
		c.ClaimedAt = &v
	}
	if t.EstimatedDays != nil {
		v := *t.EstimatedDays
		c.EstimatedDays = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// MemoryTicketHistoryRepository appends history entries to a slice.
type MemoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.TicketHistory
}

// NewMemoryTicketHistoryRepository returns an empty repository.
func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{}
}

func (r *MemoryTicketHistoryRepository) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	history.ID = r.nextID
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}
