package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
)

// NotificationKind tags why a notification is sent.
type NotificationKind string

const (
	NotificationBroadcast  NotificationKind = "broadcast"
	NotificationDirect     NotificationKind = "direct"
	NotificationCompletion NotificationKind = "completion"
)

// Notification is one (recipient, message) pair produced by the fan-out.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID int64            `json:"recipient_id"`
	Text        string           `json:"text"`
	PhotoID     string           `json:"photo_id,omitempty"`
}

// FanoutContext is the directory data the fan-out needs. Specialists is read
// for creation events, Actor for status changes.
type FanoutContext struct {
	Specialists []SpecialistContact
	Actor       *domain.Account
}

// NotificationsFor computes who is told what about event. It has no side
// effects.
//
// A created ticket yields one message to the reporter listing the assigned
// specialists plus one direct message to each specialist with a known
// account; nothing at all when the category has no specialists. A move to
// Completed yields one message to the reporter. Other transitions, claims
// included, notify nobody.
func NotificationsFor(event events.Event, fc FanoutContext) []Notification {
	ticket := event.Ticket
	switch event.Type {
	case events.EventTicketCreated:
		if len(fc.Specialists) == 0 {
			return nil
		}
		mentions := make([]string, 0, len(fc.Specialists))
		for _, s := range fc.Specialists {
			mentions = append(mentions, "@"+s.Handle)
		}
		result := []Notification{{
			Kind:        NotificationBroadcast,
			RecipientID: ticket.ReporterID,
			Text: fmt.Sprintf("🔔 Новый тикет #%d (%s). Специалисты: %s",
				ticket.ID, ticket.Category, strings.Join(mentions, ", ")),
		}}
		for _, s := range fc.Specialists {
			if s.AccountID == nil {
				continue
			}
			result = append(result, Notification{
				Kind:        NotificationDirect,
				RecipientID: *s.AccountID,
				Text: fmt.Sprintf("🔔 Вам назначен новый тикет #%d\nТип: %s\nОписание: %s",
					ticket.ID, ticket.Category, ticket.Description),
				PhotoID: ticket.PhotoID,
			})
		}
		return result

	case events.EventTicketStatusChanged:
		change, ok := event.StatusChange()
		if !ok || change.NewStatus != domain.TicketStatusCompleted {
			return nil
		}
		return []Notification{{
			Kind:        NotificationCompletion,
			RecipientID: ticket.ReporterID,
			Text:        completionText(ticket, responsibleMention(fc.Actor, event.ActorID)),
			PhotoID:     ticket.CompletionPhotoID,
		}}
	}
	return nil
}

func completionText(ticket domain.Ticket, responsible string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Заявка #%d выполнена!\n\n", ticket.ID)
	fmt.Fprintf(&b, "Проблема: %s\n", ticket.Category)
	fmt.Fprintf(&b, "Статус: %s\n", ticket.Status.Label())
	fmt.Fprintf(&b, "Ответственный: %s\n", responsible)
	if ticket.CompletionComment != "" {
		fmt.Fprintf(&b, "\nКомментарий специалиста:\n%s", ticket.CompletionComment)
	}
	return b.String()
}

func responsibleMention(account *domain.Account, id int64) string {
	if mention := account.Mention(); mention != "" {
		return mention
	}
	return fmt.Sprintf("ID:%d", id)
}
