package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/conversation"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/service"
	"github.com/spec-kit/maintenance-desk/internal/session"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// Action is one inbound message or button press delivered by the transport.
// Exactly one of Text, Callback or PhotoID is expected to be set.
type Action struct {
	ActorID  int64  `json:"actor_id"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	Callback string `json:"callback,omitempty"`
	PhotoID  string `json:"photo_id,omitempty"`
}

// Response carries the replies for the acting user.
type Response struct {
	Role    domain.Role          `json:"role"`
	Replies []conversation.Reply `json:"replies"`
}

// Engine routes inbound actions to commands, menus and forms.
type Engine struct {
	directory  *service.DirectoryService
	lifecycle  *service.LifecycleService
	sessions   session.Store
	machine    *conversation.Machine
	dispatcher events.Dispatcher
	logger     *zap.Logger
	locks      *actorLocks
}

// EngineDependencies bundles collaborators of the engine.
type EngineDependencies struct {
	Directory  *service.DirectoryService
	Lifecycle  *service.LifecycleService
	Sessions   session.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(deps EngineDependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		directory:  deps.Directory,
		lifecycle:  deps.Lifecycle,
		sessions:   deps.Sessions,
		machine:    conversation.NewMachine(deps.Lifecycle, deps.Directory),
		dispatcher: deps.Dispatcher,
		logger:     logger,
		locks:      newActorLocks(),
	}
}

// Handle processes one action. Actions of the same actor are handled one at
// a time; different actors proceed in parallel. Events produced by the
// action are published after the session has been stored, or after storing
// it failed.
func (e *Engine) Handle(ctx context.Context, action Action) (*Response, error) {
	if action.ActorID == 0 {
		return nil, apperrors.NewValidationError("actor_id is required", nil)
	}
	unlock := e.locks.lock(action.ActorID)
	defer unlock()

	actor, err := e.directory.Touch(ctx, action.ActorID, action.Handle, action.Name)
	if err != nil {
		return nil, err
	}

	result, err := e.route(ctx, actor, action)
	e.publish(ctx, result.Events)
	if err != nil {
		e.logger.Error("action failed",
			zap.Int64("actor_id", action.ActorID),
			zap.Int("events", len(result.Events)),
			zap.Error(err))
		return nil, err
	}
	return &Response{Role: actor.Role, Replies: result.Replies}, nil
}

// publish hands events of committed changes to the dispatcher. It runs even
// when the action failed afterwards so a stored ticket is never left
// without its notifications.
func (e *Engine) publish(ctx context.Context, produced []events.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, event := range produced {
		_ = e.dispatcher.Publish(context.WithoutCancel(ctx), event)
	}
}

// outcome is what route decided; persist says whether the session store
// must be updated from Result.Session.
type outcome struct {
	conversation.Result
	persist bool
}

func (e *Engine) route(ctx context.Context, actor *domain.Account, action Action) (conversation.Result, error) {
	var (
		out outcome
		err error
	)
	text := strings.TrimSpace(action.Text)
	switch {
	case action.Callback != "":
		out, err = e.advance(ctx, actor, conversation.Input{Kind: conversation.InputCallback, Text: action.Callback})
	case action.PhotoID != "":
		out, err = e.advance(ctx, actor, conversation.Input{Kind: conversation.InputPhoto, PhotoID: action.PhotoID, Text: text})
	case strings.HasPrefix(text, "/"):
		out, err = e.command(ctx, actor, text)
	case text == LabelMainMenu:
		out = outcome{Result: greeting(actor)}
	default:
		if menuAction, ok := menuActions[text]; ok {
			out, err = e.menu(ctx, actor, menuAction)
		} else {
			out, err = e.advance(ctx, actor, conversation.Input{Kind: conversation.InputText, Text: action.Text})
		}
	}
	if err != nil {
		return conversation.Result{}, err
	}
	if out.persist {
		if err := e.store(ctx, actor.ID, out.Session); err != nil {
			return conversation.Result{Events: out.Events}, err
		}
	}
	return out.Result, nil
}

func (e *Engine) store(ctx context.Context, actorID int64, s *session.Session) error {
	if s == nil {
		return e.sessions.Clear(ctx, actorID)
	}
	return e.sessions.Save(ctx, actorID, s)
}

func (e *Engine) advance(ctx context.Context, actor *domain.Account, in conversation.Input) (outcome, error) {
	current, err := e.sessions.Load(ctx, actor.ID)
	if err != nil {
		return outcome{}, err
	}
	if current == nil {
		if in.Kind == conversation.InputCallback {
			return reply(textStale), nil
		}
		r := conversation.Reply{Text: textChooseAction, Menu: MenuFor(actor.Role)}
		return outcome{Result: conversation.Result{Replies: []conversation.Reply{r}}}, nil
	}
	result, err := e.machine.Advance(ctx, current, actor, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: result, persist: true}, nil
}

// startForm consults the gate first so a denied start leaves any active
// session untouched.
func (e *Engine) startForm(ctx context.Context, actor *domain.Account, form session.Form, action auth.Action) (outcome, error) {
	if !auth.Authorize(actor.Role, action) {
		return reply(conversation.DenialText(action)), nil
	}
	result, err := e.machine.Start(ctx, form, actor)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: result, persist: true}, nil
}

func (e *Engine) menu(ctx context.Context, actor *domain.Account, action auth.Action) (outcome, error) {
	if !auth.Authorize(actor.Role, action) {
		return reply(conversation.DenialText(action)), nil
	}
	switch action {
	case auth.ActionReportProblem:
		return e.startForm(ctx, actor, session.FormNewTicket, action)
	case auth.ActionCheckStatus:
		return e.startForm(ctx, actor, session.FormCheckStatus, action)
	case auth.ActionChangeStatus:
		return e.startForm(ctx, actor, session.FormStatusChange, action)
	case auth.ActionAssignSpecialist:
		return e.startForm(ctx, actor, session.FormAssignSpecialist, action)
	case auth.ActionInfo:
		return reply(infoText), nil
	case auth.ActionMyTickets:
		return e.myTickets(ctx, actor)
	case auth.ActionListTickets:
		return e.allTickets(ctx)
	}
	return reply(textChooseAction), nil
}

func (e *Engine) command(ctx context.Context, actor *domain.Account, text string) (outcome, error) {
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	switch name {
	case "start":
		return outcome{Result: greeting(actor)}, nil
	case "cancel":
		current, err := e.sessions.Load(ctx, actor.ID)
		if err != nil {
			return outcome{}, err
		}
		if current == nil {
			return reply(textNothingToCancel), nil
		}
		out := reply(textCancelled)
		out.persist = true
		return out, nil
	case "mod_add_specialist":
		return e.startForm(ctx, actor, session.FormAssignSpecialist, auth.ActionAssignSpecialist)
	case "mod_set_role":
		return e.setRole(ctx, actor, args)
	case "mod_list_specialists":
		return e.listSpecialists(ctx, actor, args)
	}
	return reply(textUnknownCommand), nil
}

func (e *Engine) setRole(ctx context.Context, actor *domain.Account, args []string) (outcome, error) {
	if !auth.Authorize(actor.Role, auth.ActionSetRole) {
		return reply(conversation.DenialText(auth.ActionSetRole)), nil
	}
	if len(args) < 2 {
		return reply(textSetRoleUsage), nil
	}
	handle := domain.NormalizeHandle(args[0])
	role := domain.Role(strings.ToLower(args[1]))
	if !role.Valid() {
		return reply(textBadRole), nil
	}
	_, err := e.directory.SetRole(ctx, handle, role)
	switch {
	case apperrors.IsNotFound(err):
		return reply(textRoleNotYet), nil
	case apperrors.HasCode(err, apperrors.CodeValidation):
		return reply(textSetRoleUsage), nil
	case err != nil:
		return outcome{}, err
	}
	return reply(fmt.Sprintf("Роль @%s изменена на %s.", handle, role)), nil
}

func (e *Engine) listSpecialists(ctx context.Context, actor *domain.Account, args []string) (outcome, error) {
	if !auth.Authorize(actor.Role, auth.ActionListSpecialists) {
		return reply(conversation.DenialText(auth.ActionListSpecialists)), nil
	}
	if len(args) == 0 {
		return reply(textListUsage), nil
	}
	raw := strings.Join(args, " ")
	category, ok := domain.CategoryFromCode(strings.ToLower(raw))
	if !ok {
		category = domain.Category(raw)
	}
	if !category.Valid() {
		return reply(textUnknownCategory), nil
	}
	handles, err := e.directory.SpecialistsFor(ctx, category)
	if err != nil {
		return outcome{}, err
	}
	if len(handles) == 0 {
		return reply(textNoSpecialists), nil
	}
	lines := make([]string, 0, len(handles))
	for _, h := range handles {
		lines = append(lines, "@"+h)
	}
	return reply(fmt.Sprintf("Специалисты для '%s':\n%s", category, strings.Join(lines, "\n"))), nil
}

func (e *Engine) myTickets(ctx context.Context, actor *domain.Account) (outcome, error) {
	tickets, err := e.directory.OpenTicketsFor(ctx, actor.Handle, myTicketsShown)
	if err != nil {
		return outcome{}, err
	}
	if len(tickets) == 0 {
		return reply(textNoMyTickets), nil
	}
	return e.ticketList(ctx, "Ваши заявки (только по вашим направлениям):", tickets, false)
}

func (e *Engine) allTickets(ctx context.Context) (outcome, error) {
	tickets, err := e.lifecycle.ListRecent(ctx, allTicketsShown)
	if err != nil {
		return outcome{}, err
	}
	if len(tickets) == 0 {
		return reply(textNoTickets), nil
	}
	return e.ticketList(ctx, "Все заявки в системе:", tickets, true)
}

// ticketList renders one text line per ticket followed by their photos.
func (e *Engine) ticketList(ctx context.Context, title string, tickets []domain.Ticket, withDate bool) (outcome, error) {
	lines := []string{title}
	var photos []conversation.Reply
	for _, t := range tickets {
		line := conversation.TicketLine(t)
		if withDate {
			line += " • " + t.CreatedAt.Format("02.01 15:04")
		}
		caption := line
		if t.ResponsibleID != nil {
			account, err := e.directory.FindByID(ctx, *t.ResponsibleID)
			if err != nil {
				return outcome{}, err
			}
			line += fmt.Sprintf(" (Ответственный: %s)", conversation.ResponsibleLabel(account, *t.ResponsibleID))
		}
		lines = append(lines, line)
		if t.PhotoID != "" {
			photos = append(photos, conversation.Reply{Text: caption, PhotoID: t.PhotoID})
		}
	}
	replies := append([]conversation.Reply{{Text: strings.Join(lines, "\n")}}, photos...)
	return outcome{Result: conversation.Result{Replies: replies}}, nil
}

func greeting(actor *domain.Account) conversation.Result {
	return conversation.Result{Replies: []conversation.Reply{{
		Text: fmt.Sprintf(textGreeting, actor.Role),
		Menu: MenuFor(actor.Role),
	}}}
}

func reply(text string) outcome {
	return outcome{Result: conversation.Result{Replies: []conversation.Reply{{Text: text}}}}
}
