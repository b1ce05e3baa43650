package bot

import (
	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// Reply keyboard labels.
const (
	LabelReportProblem    = "✍️ Сообщить о проблеме"
	LabelCheckStatus      = "🔍 Проверить статус заявки"
	LabelInfo             = "ℹ️ Справочная информация"
	LabelMyTickets        = "🧰 Мои заявки"
	LabelChangeStatus     = "🔄 Изменить статус заявки"
	LabelAssignSpecialist = "➕ Назначить специалиста"
	LabelListTickets      = "📋 Все заявки"
	LabelMainMenu         = "🏠 Главное меню"
)

var menuLabels = map[auth.Action]string{
	auth.ActionReportProblem:    LabelReportProblem,
	auth.ActionCheckStatus:      LabelCheckStatus,
	auth.ActionInfo:             LabelInfo,
	auth.ActionMyTickets:        LabelMyTickets,
	auth.ActionChangeStatus:     LabelChangeStatus,
	auth.ActionAssignSpecialist: LabelAssignSpecialist,
	auth.ActionListTickets:      LabelListTickets,
}

var menuActions = func() map[string]auth.Action {
	m := make(map[string]auth.Action, len(menuLabels))
	for action, label := range menuLabels {
		m[label] = action
	}
	return m
}()

// MenuFor returns the reply keyboard of role.
func MenuFor(role domain.Role) []string {
	actions := auth.ActionsFor(role)
	labels := make([]string, 0, len(actions))
	for _, action := range actions {
		if label, ok := menuLabels[action]; ok {
			labels = append(labels, label)
		}
	}
	return labels
}

const infoText = "Справочная информация:\n\n" +
	"📞 Телефон УК: +7 (XXX) XXX-XX-XX\n" +
	"📧 Почта УК: support@uk-email.com\n\n" +
	"Аварийные службы:\n" +
	"🚨 Общая аварийная: 112\n" +
	"💧 Водоснабжение: +7 (XXX) XXX-XX-XY\n" +
	"⚡️ Электроснабжение: +7 (XXX) XXX-XX-XZ\n" +
	"🛗 Лифты: +7 (XXX) XXX-XX-XW"

const (
	textGreeting        = "Здравствуйте! 👋\n\nВаша роль: %s\n\nЯ чат-бот вашей Управляющей Компании. Готов помочь вам с решением бытовых вопросов."
	textChooseAction    = "Выберите действие в меню."
	textStale           = "Действие устарело. Начните заново из меню."
	textCancelled       = "Действие отменено."
	textNothingToCancel = "Нет активного действия."
	textUnknownCommand  = "Неизвестная команда."
	textSetRoleUsage    = "Использование: /mod_set_role <username> <resident|specialist|manager>"
	textBadRole         = "Недопустимая роль."
	textRoleNotYet      = "Пользователь ещё не писал боту. Роль можно будет назначить после его первого сообщения."
	textListUsage       = "Использование: /mod_list_specialists <тип_проблемы>"
	textUnknownCategory = "Неизвестный тип проблемы."
	textNoSpecialists   = "Специалисты не назначены."
	textNoMyTickets     = "Пока нет заявок по вашим направлениям."
	textNoTickets       = "Заявок пока нет."
)

const (
	myTicketsShown  = 10
	allTicketsShown = 20
)
