package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Message is one outbound chat message.
type Message struct {
	RecipientID int64  `json:"recipient_id"`
	Text        string `json:"text"`
	PhotoID     string `json:"photo_id,omitempty"`
}

// Sender delivers a message to the chat transport and reports the outcome.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookSender posts messages as JSON to the gateway's outbound endpoint.
type WebhookSender struct {
	url     string
	timeout time.Duration
}

// NewWebhookSender builds a sender for url.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{url: url, timeout: timeout}
}

// Send performs one POST. Any transport error or non-2xx status fails the
// delivery; there are no retries.
func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(w.url).Timeout(timeout).JSON(msg)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("prepare webhook request: %w", err)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook request: %w", errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d: %s", status, truncate(body, 200))
	}
	return nil
}

// LogSender only logs messages. It is used when no webhook is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("outbound message",
		zap.Int64("recipient_id", msg.RecipientID),
		zap.String("text", msg.Text),
		zap.String("photo_id", msg.PhotoID))
	return nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
