package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/service"
	"github.com/spec-kit/maintenance-desk/internal/session"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// Steps of every form.
const (
	StepQueue       session.Step = "queue"
	StepEntrance    session.Step = "entrance"
	StepFloor       session.Step = "floor"
	StepFloorNumber session.Step = "floor_number"
	StepCategory    session.Step = "category"
	StepDescription session.Step = "description"
	StepPhoto       session.Step = "photo"

	StepPickTicket      session.Step = "pick_ticket"
	StepPickStatus      session.Step = "pick_status"
	StepEstimate        session.Step = "estimate"
	StepComment         session.Step = "comment"
	StepCompletionPhoto session.Step = "completion_photo"

	StepAssignCategory session.Step = "assign_category"
	StepAssignHandle   session.Step = "assign_handle"

	StepTicketNumber session.Step = "ticket_number"
)

// Session data keys.
const (
	keyQueue       = "queue"
	keyEntrance    = "entrance"
	keyFloor       = "floor"
	keyCategory    = "category"
	keyDescription = "description"
	keyTicketID    = "ticket_id"
	keyComment     = "comment"
)

// openTicketsShown bounds the ticket picker.
const openTicketsShown = 10

var (
	textOnly     = []InputKind{InputText}
	callbackOnly = []InputKind{InputCallback}
	anyInput     = []InputKind{InputText, InputCallback, InputPhoto}
)

// forms is the step table: form -> step -> accepted inputs, prompt, handler.
var forms = map[session.Form]formSpec{
	session.FormNewTicket: {
		action: auth.ActionReportProblem,
		first:  StepQueue,
		steps: map[session.Step]stepSpec{
			StepQueue:       {accepts: callbackOnly, prompt: staticPrompt(textChooseQueue, queueOptions), handle: handleQueue},
			StepEntrance:    {accepts: textOnly, prompt: staticPrompt(textEnterEntrance, nil), handle: handleEntrance},
			StepFloor:       {accepts: callbackOnly, prompt: staticPrompt(textChooseFloor, floorOptions), handle: handleFloor},
			StepFloorNumber: {accepts: textOnly, prompt: staticPrompt(textEnterFloor, nil), handle: handleFloorNumber},
			StepCategory:    {accepts: callbackOnly, prompt: staticPrompt(textChooseCategory, categoryOptions(callbackProblemPrefix)), handle: handleCategory},
			StepDescription: {accepts: textOnly, prompt: staticPrompt(textDescribe, nil), handle: handleDescription},
			StepPhoto:       {accepts: anyInput, prompt: staticPrompt(textAttachPhoto, skipOption(callbackSkipTicketPhoto)), handle: handleTicketPhoto},
		},
	},
	session.FormStatusChange: {
		action: auth.ActionChangeStatus,
		first:  StepPickTicket,
		start:  startStatusChange,
		steps: map[session.Step]stepSpec{
			StepPickTicket:      {accepts: callbackOnly, prompt: promptPickTicket, handle: handlePickTicket},
			StepPickStatus:      {accepts: callbackOnly, prompt: staticPrompt(textPickStatus, statusOptions), handle: handlePickStatus},
			StepEstimate:        {accepts: textOnly, prompt: promptEstimate, handle: handleEstimate},
			StepComment:         {accepts: []InputKind{InputText, InputCallback}, prompt: promptComment, handle: handleComment},
			StepCompletionPhoto: {accepts: anyInput, prompt: staticPrompt(textCompletionPhoto, skipOption(callbackSkipDonePhoto)), handle: handleCompletionPhoto},
		},
	},
	session.FormAssignSpecialist: {
		action: auth.ActionAssignSpecialist,
		first:  StepAssignCategory,
		steps: map[session.Step]stepSpec{
			StepAssignCategory: {accepts: callbackOnly, prompt: staticPrompt(textChooseCategory, categoryOptions(callbackModPrefix)), handle: handleAssignCategory},
			StepAssignHandle:   {accepts: textOnly, prompt: promptAssignHandle, handle: handleAssignHandle},
		},
	},
	session.FormCheckStatus: {
		action: auth.ActionCheckStatus,
		first:  StepTicketNumber,
		steps: map[session.Step]stepSpec{
			StepTicketNumber: {accepts: textOnly, prompt: staticPrompt(textEnterTicketNumber, nil), handle: handleTicketNumber},
		},
	},
}

// New ticket intake.

func handleQueue(m *Machine, t *turn, in Input) error {
	queue := strings.TrimPrefix(in.Text, callbackQueuePrefix)
	if queue == in.Text || !service.IsDigits(queue) {
		return t.reject(m, textUseButtons)
	}
	t.session.Set(keyQueue, queue)
	return t.goTo(m, StepEntrance)
}

func handleEntrance(m *Machine, t *turn, in Input) error {
	entrance := strings.TrimSpace(in.Text)
	if !service.IsDigits(entrance) {
		return t.reject(m, textEntranceDigits)
	}
	t.session.Set(keyEntrance, entrance)
	return t.goTo(m, StepFloor)
}

func handleFloor(m *Machine, t *turn, in Input) error {
	switch in.Text {
	case callbackFloorCommon:
		t.session.Set(keyFloor, domain.FloorCommonArea)
		return t.goTo(m, StepCategory)
	case callbackFloorSpecify:
		return t.goTo(m, StepFloorNumber)
	}
	return t.reject(m, textUseButtons)
}

func handleFloorNumber(m *Machine, t *turn, in Input) error {
	floor := strings.TrimSpace(in.Text)
	if !service.IsDigits(floor) {
		return t.reject(m, textFloorDigits)
	}
	t.session.Set(keyFloor, floor)
	return t.goTo(m, StepCategory)
}

func handleCategory(m *Machine, t *turn, in Input) error {
	category, ok := domain.CategoryFromCode(strings.TrimPrefix(in.Text, callbackProblemPrefix))
	if !ok || !strings.HasPrefix(in.Text, callbackProblemPrefix) {
		return t.reject(m, textUseButtons)
	}
	t.session.Set(keyCategory, string(category))
	if category.FreeText() {
		return t.goTo(m, StepDescription)
	}
	t.session.Set(keyDescription, string(category))
	return t.goTo(m, StepPhoto)
}

func handleDescription(m *Machine, t *turn, in Input) error {
	description := strings.TrimSpace(in.Text)
	if description == "" {
		return t.reject(m, textDescribeEmpty)
	}
	t.session.Set(keyDescription, description)
	return t.goTo(m, StepPhoto)
}

// handleTicketPhoto accepts a photo; any other input skips the photo.
func handleTicketPhoto(m *Machine, t *turn, in Input) error {
	photoID := ""
	if in.Kind == InputPhoto {
		photoID = in.PhotoID
	}
	ticket, event, err := m.lifecycle.Create(t.ctx, service.TicketCreateInput{
		ReporterID: t.actor.ID,
		Location: domain.Location{
			Queue:    t.session.Get(keyQueue),
			Entrance: t.session.Get(keyEntrance),
			Floor:    t.session.Get(keyFloor),
		},
		Category:    domain.Category(t.session.Get(keyCategory)),
		Description: t.session.Get(keyDescription),
		PhotoID:     photoID,
	})
	if apperrors.HasCode(err, apperrors.CodeValidation) {
		t.say("Не удалось создать заявку: " + apperrors.ToDomainError(err).Message + ". Начните заново из меню.")
		t.finish()
		return nil
	}
	if err != nil {
		return err
	}
	t.emit(event)
	t.say(fmt.Sprintf("✅ Ваша заявка принята!\n\nНомер вашей заявки: %d\n\nВы можете отследить её статус в главном меню.", ticket.ID))
	t.finish()
	return nil
}

// Status change intake.

func startStatusChange(m *Machine, t *turn) error {
	tickets, err := m.directory.OpenTicketsFor(t.ctx, t.actor.Handle, openTicketsShown)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		t.say(textNoOpenTickets)
		t.finish()
		return nil
	}
	return t.goTo(m, StepPickTicket)
}

func promptPickTicket(m *Machine, t *turn) (Reply, error) {
	tickets, err := m.directory.OpenTicketsFor(t.ctx, t.actor.Handle, openTicketsShown)
	if err != nil {
		return Reply{}, err
	}
	options := make([]Option, 0, len(tickets))
	for _, ticket := range tickets {
		options = append(options, Option{
			Label: TicketLine(ticket),
			Data:  callbackTicketPrefix + strconv.FormatInt(ticket.ID, 10),
		})
	}
	return Reply{Text: textPickTicket, Options: options}, nil
}

func handlePickTicket(m *Machine, t *turn, in Input) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(in.Text, callbackTicketPrefix), 10, 64)
	if err != nil || !strings.HasPrefix(in.Text, callbackTicketPrefix) {
		return t.reject(m, textUseButtons)
	}
	ticket, err := m.lifecycle.Get(t.ctx, id)
	if apperrors.IsNotFound(err) {
		t.say(textTicketNotFound)
		t.finish()
		return nil
	}
	if err != nil {
		return err
	}
	allowed, err := m.directory.CanHandle(t.ctx, t.actor.Handle, ticket.Category)
	if err != nil {
		return err
	}
	if !allowed || ticket.Status.Terminal() {
		return t.reject(m, textTicketForbidden)
	}

	t.session.Set(keyTicketID, strconv.FormatInt(ticket.ID, 10))
	t.say(fmt.Sprintf("Заявка #%d выбрана.\nТип: %s\nТекущий статус: %s", ticket.ID, ticket.Category, ticket.Status.Label()))
	if ticket.PhotoID != "" {
		t.reply(Reply{Text: "Фото проблемы", PhotoID: ticket.PhotoID})
	}
	return t.goTo(m, StepPickStatus)
}

func handlePickStatus(m *Machine, t *turn, in Input) error {
	target, ok := statusCallbacks[in.Text]
	if !ok {
		return t.reject(m, textBadStatus)
	}
	switch target {
	case domain.TicketStatusClaimed:
		return t.goTo(m, StepEstimate)
	case domain.TicketStatusCompleted:
		return t.goTo(m, StepComment)
	}
	ticket, ok, err := transition(m, t, target, service.TransitionExtra{})
	if err != nil || !ok {
		return err
	}
	t.say(fmt.Sprintf("✅ Статус заявки #%d изменен на: %s\nОтветственный специалист: %s",
		ticket.ID, target.Label(), ResponsibleLabel(t.actor, t.actor.ID)))
	t.finish()
	return nil
}

func promptEstimate(_ *Machine, t *turn) (Reply, error) {
	return Reply{Text: fmt.Sprintf("Заявка #%s будет взята в работу.\n\nВведите количество дней на выполнение (или 0, если неизвестно):",
		t.session.Get(keyTicketID))}, nil
}

func handleEstimate(m *Machine, t *turn, in Input) error {
	raw := strings.TrimSpace(in.Text)
	if !service.IsDigits(raw) {
		return t.reject(m, textEstimateDigits)
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return t.reject(m, textEstimateDigits)
	}
	ticket, ok, err := transition(m, t, domain.TicketStatusClaimed, service.TransitionExtra{EstimatedDays: &days})
	if err != nil || !ok {
		return err
	}
	t.say(fmt.Sprintf("✅ Заявка #%d взята в работу!\nСрок выполнения: %s\nОтветственный специалист: %s",
		ticket.ID, DaysText(days), ResponsibleLabel(t.actor, t.actor.ID)))
	t.finish()
	return nil
}

func promptComment(_ *Machine, t *turn) (Reply, error) {
	return Reply{
		Text: fmt.Sprintf("Заявка #%s будет помечена как выполненная.\n\nДобавьте комментарий о выполненной работе (или отправьте '%s'):",
			t.session.Get(keyTicketID), SkipLabel),
		Options: skipOption(callbackSkipComment),
	}, nil
}

func handleComment(m *Machine, t *turn, in Input) error {
	comment := strings.TrimSpace(in.Text)
	if in.Kind == InputCallback {
		if in.Text != callbackSkipComment {
			return t.reject(m, textUseButtons)
		}
		comment = ""
	}
	if strings.EqualFold(comment, SkipLabel) {
		comment = ""
	}
	t.session.Set(keyComment, comment)
	if comment != "" {
		t.say(textCommentSaved)
	}
	return t.goTo(m, StepCompletionPhoto)
}

// handleCompletionPhoto accepts a photo; any other input skips the photo.
func handleCompletionPhoto(m *Machine, t *turn, in Input) error {
	extra := service.TransitionExtra{Comment: t.session.Get(keyComment)}
	if in.Kind == InputPhoto {
		extra.PhotoID = in.PhotoID
	}
	ticket, ok, err := transition(m, t, domain.TicketStatusCompleted, extra)
	if err != nil || !ok {
		return err
	}
	t.say(fmt.Sprintf("✅ Заявка #%d успешно выполнена!\nСоздатель заявки получит уведомление.", ticket.ID))
	t.finish()
	return nil
}

// transition applies target to the selected ticket. ok is false when the
// engine refused and the turn has already been answered.
func transition(m *Machine, t *turn, target domain.TicketStatus, extra service.TransitionExtra) (*domain.Ticket, bool, error) {
	id, err := strconv.ParseInt(t.session.Get(keyTicketID), 10, 64)
	if err != nil {
		t.say(textTicketNotFound)
		t.finish()
		return nil, false, nil
	}
	ticket, event, err := m.lifecycle.Transition(t.ctx, id, target, t.actor.ID, extra)
	switch {
	case err == nil:
		t.emit(event)
		return ticket, true, nil
	case apperrors.IsNotFound(err):
		t.say(textTicketNotFound)
		t.finish()
		return nil, false, nil
	case apperrors.HasCode(err, apperrors.CodeInvalidTransition):
		t.say(fmt.Sprintf("Статус заявки #%d изменить нельзя: заявка уже закрыта.", id))
		t.finish()
		return nil, false, nil
	case apperrors.HasCode(err, apperrors.CodeValidation):
		return nil, false, t.reject(m, apperrors.ToDomainError(err).Message)
	}
	return nil, false, err
}

// Specialist assignment.

func handleAssignCategory(m *Machine, t *turn, in Input) error {
	raw := strings.TrimPrefix(in.Text, callbackModPrefix)
	category, ok := domain.CategoryFromCode(raw)
	if !ok && domain.Category(raw).Valid() {
		category, ok = domain.Category(raw), true
	}
	if !ok || !strings.HasPrefix(in.Text, callbackModPrefix) {
		return t.reject(m, textUseButtons)
	}
	t.session.Set(keyCategory, string(category))
	return t.goTo(m, StepAssignHandle)
}

func promptAssignHandle(_ *Machine, t *turn) (Reply, error) {
	return Reply{Text: fmt.Sprintf("Выбран тип: %s\nТеперь отправьте username специалиста в формате @username",
		t.session.Get(keyCategory))}, nil
}

func handleAssignHandle(m *Machine, t *turn, in Input) error {
	handle := domain.NormalizeHandle(in.Text)
	if handle == "" || strings.ContainsAny(handle, " \t\n") {
		return t.reject(m, textHandleRequired)
	}
	category := domain.Category(t.session.Get(keyCategory))
	_, event, err := m.directory.AssignSpecialist(t.ctx, t.actor.ID, category, handle)
	if apperrors.HasCode(err, apperrors.CodeValidation) {
		return t.reject(m, textHandleRequired)
	}
	if err != nil {
		return err
	}
	t.emit(event)
	t.say(fmt.Sprintf("Добавлен специалист @%s для типа: %s", handle, category))
	t.finish()
	return nil
}

// Status check.

func handleTicketNumber(m *Machine, t *turn, in Input) error {
	raw := strings.TrimPrefix(strings.TrimSpace(in.Text), "#")
	if !service.IsDigits(raw) {
		return t.reject(m, textTicketNumberNaN)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return t.reject(m, textTicketNumberNaN)
	}
	ticket, err := m.lifecycle.Get(t.ctx, id)
	if apperrors.IsNotFound(err) {
		t.say(textNoSuchTicket)
		t.finish()
		return nil
	}
	if err != nil {
		return err
	}

	responsible := ""
	if ticket.ResponsibleID != nil {
		account, err := m.directory.FindByID(t.ctx, *ticket.ResponsibleID)
		if err != nil {
			return err
		}
		responsible = ResponsibleLabel(account, *ticket.ResponsibleID)
	}
	t.reply(TicketCard(*ticket, responsible)...)
	t.finish()
	return nil
}
