package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

func TestCreate_NewTicket(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	ticket, ev, err := env.lifecycle.Create(ctx, sampleInput(100, domain.CategoryElevator))
	require.NoError(t, err)
	assert.NotZero(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, string(domain.CategoryElevator), ticket.Description)
	assert.Nil(t, ticket.SpecialistID)
	assert.Nil(t, ticket.ResponsibleID)
	assert.Equal(t, env.clock.Now(), ticket.CreatedAt)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)

	assert.Equal(t, events.EventTicketCreated, ev.Type)
	assert.Equal(t, ticket.ID, ev.TicketID)
	assert.Equal(t, ticket.ID, ev.Ticket.ID)
	assert.NotEmpty(t, ev.ID)

	second, _, err := env.lifecycle.Create(ctx, sampleInput(100, domain.CategoryWater))
	require.NoError(t, err)
	assert.Greater(t, second.ID, ticket.ID)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	cases := map[string]func(*TicketCreateInput){
		"entrance not digits": func(in *TicketCreateInput) { in.Location.Entrance = "3a" },
		"floor not digits":    func(in *TicketCreateInput) { in.Location.Floor = "top" },
		"missing queue":       func(in *TicketCreateInput) { in.Location.Queue = "" },
		"unknown category":    func(in *TicketCreateInput) { in.Category = "Пожар" },
		"other without text":  func(in *TicketCreateInput) { in.Category = domain.CategoryOther },
		"missing reporter":    func(in *TicketCreateInput) { in.ReporterID = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := sampleInput(100, domain.CategoryWater)
			mutate(&input)
			_, _, err := env.lifecycle.Create(ctx, input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreate_CommonAreaAndOther(t *testing.T) {
	input := sampleInput(100, domain.CategoryOther)
	input.Location.Floor = domain.FloorCommonArea
	input.Description = "  скрипит дверь  "
	input.PhotoID = "photo-1"

	ticket, _, err := newTestEnv().lifecycle.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "скрипит дверь", ticket.Description)
	assert.Equal(t, domain.FloorCommonArea, ticket.Location.Floor)
	assert.Equal(t, "photo-1", ticket.PhotoID)
}

func TestTransition_ClaimedAtStampedOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryWater)

	env.clock.Advance(time.Hour)
	claimed, ev, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, 50, TransitionExtra{EstimatedDays: intPtr(3)})
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedAt)
	firstClaim := *claimed.ClaimedAt
	assert.Equal(t, env.clock.Now(), firstClaim)
	assert.Equal(t, 3, *claimed.EstimatedDays)
	assert.Equal(t, int64(50), *claimed.SpecialistID)
	change, ok := ev.StatusChange()
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusNew, change.OldStatus)
	assert.Equal(t, domain.TicketStatusClaimed, change.NewStatus)

	env.clock.Advance(time.Hour)
	reclaimed, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, 60, TransitionExtra{})
	require.NoError(t, err)
	assert.Equal(t, firstClaim, *reclaimed.ClaimedAt)
	assert.Equal(t, int64(50), *reclaimed.SpecialistID)
	assert.Equal(t, int64(60), *reclaimed.ResponsibleID)
	assert.Equal(t, env.clock.Now(), reclaimed.UpdatedAt)

	env.clock.Advance(time.Hour)
	completed, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusCompleted, 50, TransitionExtra{})
	require.NoError(t, err)
	assert.Equal(t, firstClaim, *completed.ClaimedAt)
}

func TestTransition_CompletedAtNeverChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryWater)

	completed, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusCompleted, 50,
		TransitionExtra{Comment: "заменили кран", PhotoID: "done-photo"})
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	stamp := *completed.CompletedAt
	assert.Equal(t, "заменили кран", completed.CompletionComment)
	assert.Equal(t, "done-photo", completed.CompletionPhotoID)

	env.clock.Advance(time.Hour)
	for _, target := range []domain.TicketStatus{
		domain.TicketStatusCompleted, domain.TicketStatusClaimed, domain.TicketStatusUnresolvable, domain.TicketStatusNew,
	} {
		_, _, err := env.lifecycle.Transition(ctx, ticket.ID, target, 51, TransitionExtra{})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "target %s", target)
	}

	stored, err := env.lifecycle.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp, *stored.CompletedAt)
	assert.Equal(t, int64(50), *stored.ResponsibleID, "rejected transitions leave no trace")
}

func TestTransition_ResponsibleIsLastActor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryLighting)

	actors := []int64{11, 12, 13}
	for _, actor := range actors {
		updated, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, actor, TransitionExtra{})
		require.NoError(t, err)
		assert.Equal(t, actor, *updated.ResponsibleID)
	}
	final, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusUnresolvable, 14, TransitionExtra{})
	require.NoError(t, err)
	assert.Equal(t, int64(14), *final.ResponsibleID)
	assert.Nil(t, final.CompletedAt)
}

func TestTransition_RoundTripPreservesReporter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 4242, domain.CategoryWater)

	_, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusCompleted, 50, TransitionExtra{})
	require.NoError(t, err)

	stored, err := env.lifecycle.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, int64(4242), stored.ReporterID)
}

func TestTransition_ZeroDaysMeansUnknown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryWater)

	claimed, _, err := env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, 50, TransitionExtra{EstimatedDays: intPtr(0)})
	require.NoError(t, err)
	require.NotNil(t, claimed.EstimatedDays)
	assert.Equal(t, 0, *claimed.EstimatedDays)
	assert.True(t, claimed.DurationUnknown())
}

func TestTransition_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryWater)

	_, _, err := env.lifecycle.Transition(ctx, 999, domain.TicketStatusClaimed, 50, TransitionExtra{})
	assert.True(t, apperrors.IsNotFound(err))

	_, _, err = env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatus("LOST"), 50, TransitionExtra{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, _, err = env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, 50, TransitionExtra{EstimatedDays: intPtr(-1)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, _, err = env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusNew, 50, TransitionExtra{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	stored, err := env.lifecycle.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
	assert.Nil(t, stored.ResponsibleID)
}

func TestTransition_ConcurrentClaimsStampOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	ticket := env.createTicket(ctx, 100, domain.CategoryWater)

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			_, _, _ = env.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusClaimed, actor, TransitionExtra{})
		}(i)
	}
	wg.Wait()

	history, err := env.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 21)
	newToClaimed := 0
	for _, h := range history {
		if h.OldStatus == domain.TicketStatusNew && h.NewStatus == domain.TicketStatusClaimed {
			newToClaimed++
		}
	}
	assert.Equal(t, 1, newToClaimed)
}

func TestHistoryAndListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	first := env.createTicket(ctx, 100, domain.CategoryWater)
	env.clock.Advance(time.Minute)
	second := env.createTicket(ctx, 200, domain.CategoryLighting)

	_, _, err := env.lifecycle.Transition(ctx, first.ID, domain.TicketStatusClaimed, 50, TransitionExtra{})
	require.NoError(t, err)

	history, err := env.lifecycle.History(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TicketStatus(""), history[0].OldStatus)
	assert.Equal(t, domain.TicketStatusNew, history[0].NewStatus)
	assert.Equal(t, domain.TicketStatusClaimed, history[1].NewStatus)
	assert.Equal(t, int64(50), history[1].ActorID)

	_, err = env.lifecycle.History(ctx, 999)
	assert.True(t, apperrors.IsNotFound(err))

	recent, err := env.lifecycle.ListRecent(ctx, 20)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)

	mine, err := env.lifecycle.ListByReporter(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
}

type brokenHistory struct{}

func (brokenHistory) Create(context.Context, *domain.TicketHistory) error {
	return errors.New("history table unavailable")
}

func (brokenHistory) ListByTicket(context.Context, int64) ([]domain.TicketHistory, error) {
	return nil, errors.New("history table unavailable")
}

func TestHistoryFailureKeepsCommittedChange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	lifecycle := NewLifecycleService(LifecycleDependencies{
		TicketRepo:  env.tickets,
		HistoryRepo: brokenHistory{},
		Clock:       env.clock.Now,
	})

	ticket, created, err := lifecycle.Create(ctx, sampleInput(100, domain.CategoryWater))
	require.NoError(t, err)
	assert.Equal(t, events.EventTicketCreated, created.Type)
	assert.Equal(t, ticket.ID, created.TicketID)

	done, changed, err := lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusCompleted, 50, TransitionExtra{})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, done.Status)
	assert.Equal(t, events.EventTicketStatusChanged, changed.Type)

	stored, err := env.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, stored.Status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusClaimed))
	assert.True(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusUnresolvable))
	assert.True(t, CanTransition(domain.TicketStatusClaimed, domain.TicketStatusClaimed))
	assert.True(t, CanTransition(domain.TicketStatusClaimed, domain.TicketStatusCompleted))
	assert.True(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusCompleted))
	assert.False(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusNew))
	assert.False(t, CanTransition(domain.TicketStatusCompleted, domain.TicketStatusClaimed))
	assert.False(t, CanTransition(domain.TicketStatusUnresolvable, domain.TicketStatusCompleted))
}

func TestIsDigits(t *testing.T) {
	assert.True(t, IsDigits("012"))
	assert.False(t, IsDigits(""))
	assert.False(t, IsDigits("-1"))
	assert.False(t, IsDigits("١٢"))
}
