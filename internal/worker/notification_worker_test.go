package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/service"
)

type countingNotifier struct {
	mu   sync.Mutex
	seen []int64
	fail bool
}

func (n *countingNotifier) Notify(_ context.Context, event events.Event) ([]service.DeliveryAttempt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, event.TicketID)
	if n.fail {
		return nil, errors.New("directory unavailable")
	}
	return []service.DeliveryAttempt{{Delivered: true}}, nil
}

func TestNotificationWorker_DrainsQueueOnStop(t *testing.T) {
	notifier := &countingNotifier{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	w := NewNotificationWorker(notifier, nil, 3, 16)
	w.Subscribe(dispatcher)
	w.Start(context.Background())

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
			Type:     events.EventTicketCreated,
			TicketID: i,
		}))
	}
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventSpecialistAssigned,
		TicketID: 99,
	}))
	w.Stop()

	assert.Len(t, notifier.seen, 10)
	assert.NotContains(t, notifier.seen, int64(99))
}

func TestNotificationWorker_KeepsGoingAfterFailure(t *testing.T) {
	notifier := &countingNotifier{fail: true}
	w := NewNotificationWorker(notifier, nil, 1, 4)
	w.Start(context.Background())

	require.NoError(t, w.enqueue(context.Background(), events.Event{TicketID: 1}))
	require.NoError(t, w.enqueue(context.Background(), events.Event{TicketID: 2}))
	w.Stop()

	assert.Equal(t, []int64{1, 2}, notifier.seen)
}

func TestNotificationWorker_EnqueueHonoursContext(t *testing.T) {
	w := NewNotificationWorker(&countingNotifier{}, nil, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.enqueue(ctx, events.Event{TicketID: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotificationWorker_PublishAfterStop(t *testing.T) {
	notifier := &countingNotifier{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	w := NewNotificationWorker(notifier, nil, 1, 1)
	w.Subscribe(dispatcher)
	w.Start(context.Background())
	w.Stop()
	w.Stop()

	assert.NotPanics(t, func() {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
			Type:     events.EventTicketCreated,
			TicketID: 1,
		}))
	})
	assert.ErrorIs(t, w.enqueue(context.Background(), events.Event{TicketID: 2}), ErrStopped)
	assert.Empty(t, notifier.seen)
}
