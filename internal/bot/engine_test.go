package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-desk/internal/delivery"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/repository"
	"github.com/spec-kit/maintenance-desk/internal/service"
	"github.com/spec-kit/maintenance-desk/internal/session"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

type outbox struct {
	mu   sync.Mutex
	sent []delivery.Message
}

func (o *outbox) Send(_ context.Context, msg delivery.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) to(recipient int64) []delivery.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []delivery.Message
	for _, m := range o.sent {
		if m.RecipientID == recipient {
			result = append(result, m)
		}
	}
	return result
}

type harness struct {
	engine   *Engine
	sessions session.Store
	outbox   *outbox
	dir      *service.DirectoryService
	life     *service.LifecycleService
}

// clearFailingStore loads and saves sessions but cannot delete them.
type clearFailingStore struct {
	*session.MemoryStore
}

func (clearFailingStore) Clear(context.Context, int64) error {
	return errors.New("session backend unavailable")
}

func newHarness(moderators ...string) *harness {
	return newHarnessWithStore(session.NewMemoryStore(), moderators...)
}

func newHarnessWithStore(store session.Store, moderators ...string) *harness {
	tickets := repository.NewMemoryTicketRepository()
	dir := service.NewDirectoryService(service.DirectoryDependencies{
		AccountRepo:    repository.NewMemoryAccountRepository(),
		AssignmentRepo: repository.NewMemoryAssignmentRepository(),
		TicketRepo:     tickets,
		Moderators:     moderators,
	})
	life := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  tickets,
		HistoryRepo: repository.NewMemoryTicketHistoryRepository(),
	})
	dispatcher := events.NewInMemoryDispatcher(nil)
	box := &outbox{}
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Directory:  dir,
		Sender:     box,
	}).RegisterHandlers()

	return &harness{
		engine: NewEngine(EngineDependencies{
			Directory:  dir,
			Lifecycle:  life,
			Sessions:   store,
			Dispatcher: dispatcher,
		}),
		sessions: store,
		outbox:   box,
		dir:      dir,
		life:     life,
	}
}

func (h *harness) send(t *testing.T, a Action) *Response {
	t.Helper()
	resp, err := h.engine.Handle(context.Background(), a)
	require.NoError(t, err)
	return resp
}

func lastReply(r *Response) string { return r.Replies[len(r.Replies)-1].Text }

var (
	resident = Action{ActorID: 100, Handle: "anna", Name: "Анна"}
	chief    = Action{ActorID: 1, Handle: "chief", Name: "Chief"}
	plumber  = Action{ActorID: 50, Handle: "plumber", Name: "Пётр"}
)

func with(a Action, text string) Action {
	a.Text = text
	return a
}

func press(a Action, data string) Action {
	a.Callback = data
	return a
}

func TestStart_GreetsWithRoleMenu(t *testing.T) {
	h := newHarness("chief")

	resp := h.send(t, with(resident, "/start"))
	assert.Equal(t, domain.RoleResident, resp.Role)
	assert.Equal(t, []string{LabelReportProblem, LabelCheckStatus, LabelInfo}, resp.Replies[0].Menu)

	resp = h.send(t, with(chief, "/start"))
	assert.Equal(t, domain.RoleManager, resp.Role)
	assert.Contains(t, resp.Replies[0].Menu, LabelAssignSpecialist)
	assert.Contains(t, lastReply(resp), "manager")
}

func TestHandle_RequiresActor(t *testing.T) {
	_, err := newHarness().engine.Handle(context.Background(), Action{Text: "/start"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestEndToEnd_ReportClaimComplete(t *testing.T) {
	h := newHarness("chief")
	h.send(t, with(chief, "/start"))
	h.send(t, with(plumber, "/start"))

	h.send(t, with(chief, LabelAssignSpecialist))
	h.send(t, press(chief, "mod_pt_water"))
	resp := h.send(t, with(chief, "@plumber"))
	assert.Contains(t, lastReply(resp), "Добавлен специалист @plumber")

	resp = h.send(t, with(plumber, "/start"))
	assert.Equal(t, domain.RoleSpecialist, resp.Role)

	h.send(t, with(resident, LabelReportProblem))
	h.send(t, press(resident, "queue_1"))
	h.send(t, with(resident, "2"))
	h.send(t, press(resident, "floor_specify"))
	h.send(t, with(resident, "5"))
	h.send(t, press(resident, "problem_water"))
	resp = h.send(t, press(resident, "skip_ticket_photo"))
	assert.Contains(t, lastReply(resp), "Номер вашей заявки: 1")

	broadcast := h.outbox.to(resident.ActorID)
	require.Len(t, broadcast, 1)
	assert.Contains(t, broadcast[0].Text, "@plumber")
	require.Len(t, h.outbox.to(plumber.ActorID), 1)

	resp = h.send(t, with(plumber, LabelMyTickets))
	assert.Contains(t, lastReply(resp), "#1 • Проблема с водой • Новая")

	h.send(t, with(plumber, LabelChangeStatus))
	h.send(t, press(plumber, "ticket_1"))
	h.send(t, press(plumber, "status_in_progress"))
	resp = h.send(t, with(plumber, "2"))
	assert.Contains(t, lastReply(resp), "2 дней")
	assert.Len(t, h.outbox.to(resident.ActorID), 1, "claim does not notify the reporter")

	h.send(t, with(plumber, LabelChangeStatus))
	h.send(t, press(plumber, "ticket_1"))
	h.send(t, press(plumber, "status_completed"))
	h.send(t, with(plumber, "Готово"))
	h.send(t, with(plumber, "без фото"))

	toReporter := h.outbox.to(resident.ActorID)
	require.Len(t, toReporter, 2)
	assert.Contains(t, toReporter[1].Text, "Заявка #1 выполнена")
	assert.Contains(t, toReporter[1].Text, "Готово")

	resp = h.send(t, with(plumber, LabelMyTickets))
	assert.Equal(t, textNoMyTickets, lastReply(resp))

	h.send(t, with(resident, LabelCheckStatus))
	resp = h.send(t, with(resident, "1"))
	assert.Contains(t, resp.Replies[0].Text, "Статус: Выполнено")
	assert.Contains(t, resp.Replies[0].Text, "Ответственный: @plumber")
}

func TestSessionStoreFailure_StillNotifies(t *testing.T) {
	h := newHarnessWithStore(clearFailingStore{session.NewMemoryStore()})
	h.send(t, with(plumber, "/start"))
	_, _, err := h.dir.AssignSpecialist(context.Background(), 1, domain.CategoryWater, "plumber")
	require.NoError(t, err)

	h.send(t, with(resident, LabelReportProblem))
	h.send(t, press(resident, "queue_1"))
	h.send(t, with(resident, "2"))
	h.send(t, press(resident, "floor_common"))
	h.send(t, press(resident, "problem_water"))

	_, err = h.engine.Handle(context.Background(), press(resident, "skip_ticket_photo"))
	require.Error(t, err)

	ticket, err := h.life.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	require.Len(t, h.outbox.to(plumber.ActorID), 1)
	require.Len(t, h.outbox.to(resident.ActorID), 1)
	assert.Equal(t, 0, h.engine.locks.size())
}

func TestMenu_DeniedKeepsSession(t *testing.T) {
	h := newHarness()
	h.send(t, with(resident, LabelReportProblem))

	resp := h.send(t, with(resident, LabelChangeStatus))
	assert.Equal(t, "Доступно только для специалистов.", lastReply(resp))

	s, err := h.sessions.Load(context.Background(), resident.ActorID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, session.FormNewTicket, s.Form)
}

func TestNewFormOverwritesOld(t *testing.T) {
	h := newHarness()
	h.send(t, with(resident, LabelReportProblem))
	h.send(t, press(resident, "queue_2"))
	h.send(t, with(resident, LabelCheckStatus))

	s, err := h.sessions.Load(context.Background(), resident.ActorID)
	require.NoError(t, err)
	assert.Equal(t, session.FormCheckStatus, s.Form)
	assert.Empty(t, s.Get("queue"))
}

func TestCancel(t *testing.T) {
	h := newHarness()
	resp := h.send(t, with(resident, "/cancel"))
	assert.Equal(t, textNothingToCancel, lastReply(resp))

	h.send(t, with(resident, LabelReportProblem))
	resp = h.send(t, with(resident, "/cancel"))
	assert.Equal(t, textCancelled, lastReply(resp))

	s, err := h.sessions.Load(context.Background(), resident.ActorID)
	require.NoError(t, err)
	assert.Nil(t, s)

	resp = h.send(t, press(resident, "queue_1"))
	assert.Equal(t, textStale, lastReply(resp))
}

func TestFreeTextWithoutSession(t *testing.T) {
	resp := newHarness().send(t, with(resident, "привет"))
	assert.Equal(t, textChooseAction, lastReply(resp))
	assert.NotEmpty(t, resp.Replies[0].Menu)
}

func TestInfo(t *testing.T) {
	resp := newHarness().send(t, with(resident, LabelInfo))
	assert.Contains(t, lastReply(resp), "Аварийные службы")
}

func TestSetRoleCommand(t *testing.T) {
	h := newHarness("chief")
	h.send(t, with(chief, "/start"))

	resp := h.send(t, with(chief, "/mod_set_role"))
	assert.Equal(t, textSetRoleUsage, lastReply(resp))

	resp = h.send(t, with(chief, "/mod_set_role @alice specialist"))
	assert.Equal(t, textRoleNotYet, lastReply(resp))

	resp = h.send(t, Action{ActorID: 7, Handle: "alice", Text: "/start"})
	assert.Equal(t, domain.RoleResident, resp.Role)

	resp = h.send(t, with(chief, "/mod_set_role alice superuser"))
	assert.Equal(t, textBadRole, lastReply(resp))

	resp = h.send(t, with(chief, "/mod_set_role alice specialist"))
	assert.Equal(t, "Роль @alice изменена на specialist.", lastReply(resp))

	resp = h.send(t, with(resident, "/mod_set_role alice manager"))
	assert.Equal(t, "Доступно только для модераторов.", lastReply(resp))
}

func TestListSpecialistsCommand(t *testing.T) {
	h := newHarness("chief")
	h.send(t, with(chief, "/start"))

	resp := h.send(t, with(chief, "/mod_list_specialists Не работает лифт"))
	assert.Equal(t, textNoSpecialists, lastReply(resp))

	_, _, err := h.dir.AssignSpecialist(context.Background(), 1, domain.CategoryElevator, "lift")
	require.NoError(t, err)
	resp = h.send(t, with(chief, "/mod_list_specialists elevator"))
	assert.Equal(t, "Специалисты для 'Не работает лифт':\n@lift", lastReply(resp))

	resp = h.send(t, with(chief, "/mod_list_specialists Пожар"))
	assert.Equal(t, textUnknownCategory, lastReply(resp))
}

func TestAllTickets(t *testing.T) {
	h := newHarness("chief")
	resp := h.send(t, with(chief, LabelListTickets))
	assert.Equal(t, textNoTickets, lastReply(resp))

	_, _, err := h.life.Create(context.Background(), service.TicketCreateInput{
		ReporterID: 100, Location: domain.Location{Queue: "1", Entrance: "1", Floor: "1"},
		Category: domain.CategoryLighting, PhotoID: "bulb.jpg",
	})
	require.NoError(t, err)

	resp = h.send(t, with(chief, LabelListTickets))
	require.Len(t, resp.Replies, 2)
	assert.Contains(t, resp.Replies[0].Text, "#1 • Перегорела лампочка • Новая • ")
	assert.Equal(t, "bulb.jpg", resp.Replies[1].PhotoID)

	resp = h.send(t, with(resident, LabelListTickets))
	assert.Equal(t, "Доступно только для модераторов.", lastReply(resp))
}

func TestUnknownCommand(t *testing.T) {
	resp := newHarness().send(t, with(resident, "/launch_rockets"))
	assert.Equal(t, textUnknownCommand, lastReply(resp))
}

func TestConcurrentActionsSameActor(t *testing.T) {
	h := newHarness()
	h.send(t, with(resident, LabelReportProblem))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.engine.Handle(context.Background(), press(resident, "queue_1"))
		}()
	}
	wg.Wait()

	s, err := h.sessions.Load(context.Background(), resident.ActorID)
	require.NoError(t, err)
	assert.Equal(t, "1", s.Get("queue"))
	assert.Equal(t, 0, h.engine.locks.size())
}

func TestActorLocks_Serializes(t *testing.T) {
	locks := newActorLocks()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(1)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}
