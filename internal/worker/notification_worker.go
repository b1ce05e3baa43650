package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/service"
)

// ErrStopped is returned for events published after Stop.
var ErrStopped = errors.New("notification worker stopped")

// Notifier delivers the notifications of one event.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) ([]service.DeliveryAttempt, error)
}

// NotificationWorker moves notification delivery off the request path.
// Events are queued by the dispatcher subscription and drained by a fixed
// number of goroutines.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event
	workers  int
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotificationWorker creates a worker with the given pool size and
// queue capacity.
func NewNotificationWorker(notifier Notifier, logger *zap.Logger, workers, buffer int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan events.Event, buffer),
		workers:  workers,
	}
}

// Subscribe routes ticket events from dispatcher into the queue.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, w.enqueue)
	dispatcher.Subscribe(events.EventTicketStatusChanged, w.enqueue)
}

// enqueue blocks when the queue is full so no event is dropped. Events
// arriving after Stop are logged and refused.
func (w *NotificationWorker) enqueue(ctx context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("event dropped after shutdown",
			zap.String("event_id", event.ID),
			zap.Int64("ticket_id", event.TicketID))
		return ErrStopped
	}
	select {
	case w.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the pool. Workers exit after Stop once the queue is empty.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers))
}

// Stop closes the queue and waits for queued events to be delivered.
// It is safe to call more than once.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for event := range w.queue {
		attempts, err := w.notifier.Notify(context.WithoutCancel(ctx), event)
		if err != nil {
			w.logger.Error("notification fan-out failed",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
			continue
		}
		w.logger.Debug("event delivered",
			zap.Int("worker", id),
			zap.String("event_id", event.ID),
			zap.Int("notifications", len(attempts)))
	}
}
