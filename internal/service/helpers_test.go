package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/maintenance-desk/internal/delivery"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/repository"
)

type testEnv struct {
	accounts    *repository.MemoryAccountRepository
	assignments *repository.MemoryAssignmentRepository
	tickets     *repository.MemoryTicketRepository
	history     *repository.MemoryTicketHistoryRepository
	directory   *DirectoryService
	lifecycle   *LifecycleService
	clock       *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(moderators ...string) *testEnv {
	env := &testEnv{
		accounts:    repository.NewMemoryAccountRepository(),
		assignments: repository.NewMemoryAssignmentRepository(),
		tickets:     repository.NewMemoryTicketRepository(),
		history:     repository.NewMemoryTicketHistoryRepository(),
		clock:       &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	env.directory = NewDirectoryService(DirectoryDependencies{
		AccountRepo:    env.accounts,
		AssignmentRepo: env.assignments,
		TicketRepo:     env.tickets,
		Moderators:     moderators,
	})
	env.lifecycle = NewLifecycleService(LifecycleDependencies{
		TicketRepo:  env.tickets,
		HistoryRepo: env.history,
		Clock:       env.clock.Now,
	})
	return env
}

func sampleInput(reporter int64, category domain.Category) TicketCreateInput {
	return TicketCreateInput{
		ReporterID: reporter,
		Location:   domain.Location{Queue: "1", Entrance: "3", Floor: "7"},
		Category:   category,
	}
}

func (e *testEnv) createTicket(ctx context.Context, reporter int64, category domain.Category) *domain.Ticket {
	ticket, _, err := e.lifecycle.Create(ctx, sampleInput(reporter, category))
	if err != nil {
		panic(err)
	}
	return ticket
}

func intPtr(v int) *int { return &v }

type recordingSender struct {
	mu      sync.Mutex
	sent    []delivery.Message
	failFor map[int64]bool
}

func (r *recordingSender) Send(_ context.Context, msg delivery.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[msg.RecipientID] {
		return errors.New("chat unavailable")
	}
	r.sent = append(r.sent, msg)
	return nil
}
