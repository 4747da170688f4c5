package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/inkwell-labs/inkwell/libs/fanout"
	"github.com/inkwell-labs/inkwell/libs/outbox"
	"github.com/inkwell-labs/inkwell/libs/runtime"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/model"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationStore struct {
	mu    sync.Mutex
	items []model.Notification
}

func (s *notificationStore) Create(_ context.Context, n model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.New()
	s.items = append(s.items, n)
	return n, nil
}

// Write -> poll -> publish -> pull -> process, all in memory.
func TestPostCreatedReachesStoreAndLiveListener(t *testing.T) {
	ctx := context.Background()
	logger := runtime.DiscardLogger()
	broker := bus.NewMemoryBroker()
	puller := broker.Puller("domain-events", "notification-service")

	events := outbox.NewMemoryStore(nil)
	author := uuid.New()
	_, err := events.Add(outbox.Event{
		AggregateType: "post",
		AggregateID:   uuid.New(),
		EventType:     processor.EventPostCreated,
		Payload:       map[string]string{"author_id": author.String(), "title": "Hello"},
	})
	require.NoError(t, err)

	poller := outbox.NewPoller(events, broker.Publisher("domain-events"), logger, outbox.PollerConfig{})
	sent, err := poller.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	store := &notificationStore{}
	hub := fanout.NewHub[processor.NotificationEvent]()
	listener := hub.Subscribe(func(e processor.NotificationEvent) bool { return e.UserID == author }, 4)
	defer listener.Close()

	sub := bus.NewSubscriber(puller, New(processor.New(store, hub, logger), logger).Handle, logger, bus.SubscriberConfig{})
	handled, err := sub.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	require.Len(t, store.items, 1)
	assert.Equal(t, author, store.items[0].UserID)
	assert.Equal(t, "Your post 'Hello' has been published!", store.items[0].Message)

	select {
	case evt := <-listener.C():
		assert.Equal(t, "New Post Published", evt.Title)
	case <-time.After(time.Second):
		t.Fatal("live listener got nothing")
	}

	pending, acked := broker.Stats("domain-events", "notification-service")
	assert.Zero(t, pending)
	assert.Equal(t, 1, acked)
}
