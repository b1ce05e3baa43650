package conversation

import (
	"context"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/service"
	"github.com/spec-kit/maintenance-desk/internal/session"
)

// Lifecycle is the part of the lifecycle service the forms drive.
type Lifecycle interface {
	Create(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, events.Event, error)
	Transition(ctx context.Context, ticketID int64, target domain.TicketStatus, actorID int64, extra service.TransitionExtra) (*domain.Ticket, events.Event, error)
	Get(ctx context.Context, ticketID int64) (*domain.Ticket, error)
}

// Directory is the part of the directory service the forms drive.
type Directory interface {
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	AssignSpecialist(ctx context.Context, actorID int64, category domain.Category, handle string) (*domain.CategoryAssignment, events.Event, error)
	OpenTicketsFor(ctx context.Context, handle string, limit int) ([]domain.Ticket, error)
	CanHandle(ctx context.Context, handle string, category domain.Category) (bool, error)
}

// Machine runs the forms in the step table against the services.
type Machine struct {
	lifecycle Lifecycle
	directory Directory
}

// NewMachine constructs a Machine.
func NewMachine(lifecycle Lifecycle, directory Directory) *Machine {
	return &Machine{lifecycle: lifecycle, directory: directory}
}

// stepHandler consumes an accepted input. It either moves the turn to a
// step, rejects the input (staying on the step), or finishes the form.
type stepHandler func(m *Machine, t *turn, in Input) error

// promptFunc renders what a step asks for.
type promptFunc func(m *Machine, t *turn) (Reply, error)

type stepSpec struct {
	accepts []InputKind
	prompt  promptFunc
	handle  stepHandler
}

type formSpec struct {
	// action is checked on start and on every step.
	action auth.Action
	first  session.Step
	// start replaces the default "enter first step" behavior when set.
	start func(m *Machine, t *turn) error
	steps map[session.Step]stepSpec
}

// Start opens form for actor, replacing whatever session the caller had.
func (m *Machine) Start(ctx context.Context, form session.Form, actor *domain.Account) (Result, error) {
	spec, ok := forms[form]
	if !ok {
		return Result{Replies: []Reply{{Text: textSessionExpired}}}, nil
	}
	if !auth.Authorize(actor.Role, spec.action) {
		return Result{Replies: []Reply{{Text: DenialText(spec.action)}}}, nil
	}

	t := newTurn(ctx, actor, session.New(form, spec.first), spec)
	start := spec.start
	if start == nil {
		start = func(m *Machine, t *turn) error { return t.goTo(m, spec.first) }
	}
	if err := start(m, t); err != nil {
		return Result{}, err
	}
	return t.outcome(), nil
}

// Advance feeds one input to the step the session is waiting on. Inputs of
// a kind the step does not accept re-send the step's prompt.
func (m *Machine) Advance(ctx context.Context, s *session.Session, actor *domain.Account, in Input) (Result, error) {
	spec, ok := forms[s.Form]
	if !ok {
		return Result{Replies: []Reply{{Text: textSessionExpired}}}, nil
	}
	if !auth.Authorize(actor.Role, spec.action) {
		return Result{Replies: []Reply{{Text: DenialText(spec.action)}}}, nil
	}
	step, ok := spec.steps[s.Step]
	if !ok {
		return Result{Replies: []Reply{{Text: textSessionExpired}}}, nil
	}

	t := newTurn(ctx, actor, s.Clone(), spec)
	if !accepts(step, in.Kind) {
		if err := t.reject(m, textUseButtonsFor(step)); err != nil {
			return Result{}, err
		}
		return t.outcome(), nil
	}
	if err := step.handle(m, t, in); err != nil {
		return Result{}, err
	}
	return t.outcome(), nil
}

func accepts(step stepSpec, kind InputKind) bool {
	for _, k := range step.accepts {
		if k == kind {
			return true
		}
	}
	return false
}

func textUseButtonsFor(step stepSpec) string {
	for _, k := range step.accepts {
		if k == InputText {
			return ""
		}
	}
	return textUseButtons
}

// DenialText is the message shown when the gate refuses action.
func DenialText(action auth.Action) string {
	switch {
	case auth.Authorize(domain.RoleSpecialist, action) && !auth.Authorize(domain.RoleResident, action):
		return "Доступно только для специалистов."
	case auth.Authorize(domain.RoleManager, action) && !auth.Authorize(domain.RoleResident, action):
		return "Доступно только для модераторов."
	default:
		return "Недостаточно прав."
	}
}

// turn accumulates the effects of one Start or Advance call.
type turn struct {
	ctx     context.Context
	actor   *domain.Account
	session *session.Session
	form    formSpec
	replies []Reply
	events  []events.Event
	done    bool
}

func newTurn(ctx context.Context, actor *domain.Account, s *session.Session, form formSpec) *turn {
	return &turn{ctx: ctx, actor: actor, session: s, form: form}
}

func (t *turn) reply(r ...Reply) {
	t.replies = append(t.replies, r...)
}

func (t *turn) say(text string) {
	t.reply(Reply{Text: text})
}

func (t *turn) emit(ev events.Event) {
	t.events = append(t.events, ev)
}

// goTo moves to step and sends its prompt.
func (t *turn) goTo(m *Machine, step session.Step) error {
	t.session.Step = step
	prompt, err := t.form.steps[step].prompt(m, t)
	if err != nil {
		return err
	}
	t.reply(prompt)
	return nil
}

// reject keeps the current step and collected data, answering with text
// followed by the step's options. An empty text re-sends the prompt.
func (t *turn) reject(m *Machine, text string) error {
	prompt, err := t.form.steps[t.session.Step].prompt(m, t)
	if err != nil {
		return err
	}
	if text != "" {
		prompt.Text = text
	}
	t.reply(prompt)
	return nil
}

func (t *turn) finish() {
	t.done = true
}

func (t *turn) outcome() Result {
	r := Result{Replies: t.replies, Events: t.events}
	if !t.done {
		r.Session = t.session
	}
	return r
}

func staticPrompt(text string, options []Option) promptFunc {
	return func(*Machine, *turn) (Reply, error) {
		return Reply{Text: text, Options: options}, nil
	}
}
