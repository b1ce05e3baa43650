package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// Prompts and messages shown to users.
const (
	textChooseQueue    = "Выберите вашу очередь (корпус):"
	textEnterEntrance  = "Теперь введите номер вашего подъезда (только цифру):"
	textEntranceDigits = "Пожалуйста, введите только номер подъезда (цифрой)."
	textChooseFloor    = "Где именно проблема?"
	textEnterFloor     = "Введите номер этажа:"
	textFloorDigits    = "Пожалуйста, введите только номер этажа (цифрой)."
	textChooseCategory = "Выберите тип проблемы:"
	textDescribe       = "Опишите проблему своими словами:"
	textDescribeEmpty  = "Описание не может быть пустым. Опишите проблему своими словами:"
	textAttachPhoto    = "Прикрепите фотографию проблемы или нажмите 'Пропустить'."
	textUseButtons     = "Пожалуйста, воспользуйтесь кнопками ниже."

	textPickTicket      = "Выберите заявку для изменения статуса:"
	textNoOpenTickets   = "У вас нет заявок для изменения статуса."
	textTicketNotFound  = "Заявка не найдена."
	textTicketForbidden = "Эта заявка недоступна для изменения. Выберите другую:"
	textPickStatus      = "Выберите новый статус:"
	textBadStatus       = "Неверный статус."
	textEstimateDigits  = "Пожалуйста, введите число (количество дней, или 0 если неизвестно):"
	textCommentSaved    = "Комментарий сохранен."
	textCompletionPhoto = "Теперь прикрепите фото выполненной работы (или отправьте любое сообщение, чтобы пропустить):"

	textHandleRequired = "Укажите username в формате @username"

	textEnterTicketNumber = "Пожалуйста, введите номер вашей заявки:"
	textTicketNumberNaN   = "Номер заявки должен быть числом. Попробуйте ещё раз."
	textNoSuchTicket      = "Заявка с таким номером не найдена."

	textSessionExpired = "Действие устарело. Начните заново из меню."

	// SkipLabel is the free-text equivalent of the skip buttons.
	SkipLabel = "Пропустить"
)

// Callback data.
const (
	callbackQueuePrefix     = "queue_"
	callbackFloorCommon     = "floor_common"
	callbackFloorSpecify    = "floor_specify"
	callbackProblemPrefix   = "problem_"
	callbackModPrefix       = "mod_pt_"
	callbackTicketPrefix    = "ticket_"
	callbackStatusClaim     = "status_in_progress"
	callbackStatusComplete  = "status_completed"
	callbackStatusNotFound  = "status_not_found"
	callbackSkipTicketPhoto = "skip_ticket_photo"
	callbackSkipComment     = "skip_comment"
	callbackSkipDonePhoto   = "skip_completion_photo"
)

var queueOptions = []Option{
	{Label: "1-я Очередь", Data: callbackQueuePrefix + "1"},
	{Label: "2-я Очередь", Data: callbackQueuePrefix + "2"},
}

var floorOptions = []Option{
	{Label: "Общедомовое имущество", Data: callbackFloorCommon},
	{Label: "Указать этаж", Data: callbackFloorSpecify},
}

var statusOptions = []Option{
	{Label: domain.TicketStatusClaimed.Label(), Data: callbackStatusClaim},
	{Label: domain.TicketStatusCompleted.Label(), Data: callbackStatusComplete},
	{Label: domain.TicketStatusUnresolvable.Label(), Data: callbackStatusNotFound},
}

var statusCallbacks = map[string]domain.TicketStatus{
	callbackStatusClaim:    domain.TicketStatusClaimed,
	callbackStatusComplete: domain.TicketStatusCompleted,
	callbackStatusNotFound: domain.TicketStatusUnresolvable,
}

func categoryOptions(prefix string) []Option {
	options := make([]Option, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		label := string(c)
		if c.FreeText() && prefix == callbackProblemPrefix {
			label = "Другое (описать)"
		}
		options = append(options, Option{Label: label, Data: prefix + c.Code()})
	}
	return options
}

func skipOption(data string) []Option {
	return []Option{{Label: SkipLabel, Data: data}}
}

// DaysText renders an estimated duration; zero means unknown.
func DaysText(days int) string {
	if days <= 0 {
		return "неизвестно"
	}
	return fmt.Sprintf("%d дней", days)
}

// FormatDate renders a timestamp as dd.mm.yyyy HH:MM.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// ResponsibleLabel renders who last acted on a ticket.
func ResponsibleLabel(account *domain.Account, id int64) string {
	if mention := account.Mention(); mention != "" {
		return mention
	}
	return fmt.Sprintf("ID:%d", id)
}

// TicketLine is the one-line summary used in lists and pickers.
func TicketLine(t domain.Ticket) string {
	return fmt.Sprintf("#%d • %s • %s", t.ID, t.Category, t.Status.Label())
}

// LocationText renders where the problem is.
func LocationText(l domain.Location) string {
	floor := "этаж " + l.Floor
	if l.Floor == domain.FloorCommonArea {
		floor = "общедомовое имущество"
	}
	return fmt.Sprintf("очередь %s, подъезд %s, %s", l.Queue, l.Entrance, floor)
}

// TicketCard renders the status check answer plus any photos. responsible
// is empty when nobody has acted on the ticket yet.
func TicketCard(t domain.Ticket, responsible string) []Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Заявка №%d\n\n", t.ID)
	fmt.Fprintf(&b, "Статус: %s\n", t.Status.Label())
	fmt.Fprintf(&b, "Проблема: %s\n", t.Category)
	fmt.Fprintf(&b, "Описание: %s\n", t.Description)
	fmt.Fprintf(&b, "Место: %s\n", LocationText(t.Location))
	fmt.Fprintf(&b, "Дата создания: %s", FormatDate(t.CreatedAt))
	if responsible != "" {
		fmt.Fprintf(&b, "\nОтветственный: %s", responsible)
	}
	if t.ClaimedAt != nil {
		fmt.Fprintf(&b, "\nДата взятия в работу: %s", FormatDate(*t.ClaimedAt))
		if t.EstimatedDays != nil {
			fmt.Fprintf(&b, "\nСрок выполнения: %s", DaysText(*t.EstimatedDays))
		}
	}
	if t.Status == domain.TicketStatusCompleted {
		if t.CompletedAt != nil {
			fmt.Fprintf(&b, "\nДата выполнения: %s", FormatDate(*t.CompletedAt))
		}
		if t.CompletionComment != "" {
			fmt.Fprintf(&b, "\n\nКомментарий специалиста:\n%s", t.CompletionComment)
		}
	}

	replies := []Reply{{Text: b.String()}}
	if t.PhotoID != "" {
		replies = append(replies, Reply{Text: "Фото проблемы:", PhotoID: t.PhotoID})
	}
	if t.Status == domain.TicketStatusCompleted && t.CompletionPhotoID != "" {
		replies = append(replies, Reply{Text: "Фото выполненной работы:", PhotoID: t.CompletionPhotoID})
	}
	return replies
}
