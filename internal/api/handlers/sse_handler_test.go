package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/locationhierarchy/internal/api/handlers"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
)

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.LocationEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.LocationEvent),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.LocationEvent) error {
	m.mu.RLock()
	channels := append([]chan *entities.LocationEvent(nil), m.subscribers[channel]...)
	m.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.LocationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.LocationEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[providers.EventChannelLocationUpdates])
}

// stream runs the handler until publish has run and the context is cancelled, then returns the body
func stream(t *testing.T, handler *handlers.SSEHandler, target string, bus *MockEventBus, publish func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamLocationUpdates(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return bus.SubscriberCount() > 0 }, time.Second, 10*time.Millisecond)
	publish()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	return w
}

func TestSSEHandler_StreamsLocationEvents(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)

	w := stream(t, handler, "/api/stream/locations", bus, func() {
		_ = bus.Publish(context.Background(), providers.EventChannelLocationUpdates,
			entities.NewLocationEvent("ward", entities.LocationEventTypeUpserted))
	})

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: location_upserted")
	assert.Contains(t, body, `"location_id":"ward"`)
	assert.Equal(t, 0, handler.GetClientCount())
}

func TestSSEHandler_FiltersByLocation(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)

	w := stream(t, handler, "/api/stream/locations?id=bed-1", bus, func() {
		_ = bus.Publish(context.Background(), providers.EventChannelLocationUpdates,
			entities.NewLocationEvent("ward", entities.LocationEventTypeUpserted))
		_ = bus.Publish(context.Background(), providers.EventChannelLocationUpdates,
			entities.NewLocationEvent("", entities.LocationEventTypeReloaded))
	})

	body := w.Body.String()
	assert.NotContains(t, body, "event: location_upserted")
	assert.Contains(t, body, "event: locations_reloaded")
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)
	handler.SetHeartbeatInterval(20 * time.Millisecond)

	w := stream(t, handler, "/api/stream/locations", bus, func() {})

	assert.True(t, strings.Count(w.Body.String(), "event: heartbeat") >= 1)
}
