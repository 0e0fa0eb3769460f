package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams location change events to connected clients
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	clients map[chan *entities.LocationEvent]string // client -> location filter
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
		logger:    observability.ComponentLogger("sse"),
		clients:   make(map[chan *entities.LocationEvent]string),
	}
}

// SetHeartbeatInterval overrides how often idle connections receive a heartbeat
func (h *SSEHandler) SetHeartbeatInterval(interval time.Duration) {
	if interval > 0 {
		h.heartbeat = interval
	}
}

// StreamLocationUpdates handles SSE connections for location changes
// GET /api/stream/locations?id=
func (h *SSEHandler) StreamLocationUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	locationID := r.URL.Query().Get("id")

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelLocationUpdates)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to location updates")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.LocationEvent, 10)
	h.registerClient(clientChan, locationID)
	defer h.unregisterClient(clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"location_id": locationID,
		"timestamp":   time.Now().UTC(),
	})
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan, locationID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents relays bus events matching locationID to the client.
// Reload events always pass since they affect every location.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.LocationEvent, clientChan chan<- *entities.LocationEvent, locationID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			if locationID != "" && event.EventType != entities.LocationEventTypeReloaded && event.LocationID != locationID {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *SSEHandler) registerClient(clientChan chan *entities.LocationEvent, locationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientChan] = locationID
	h.logger.Debug().Str("location_id", locationID).Int("clients", len(h.clients)).Msg("client connected")
}

func (h *SSEHandler) unregisterClient(clientChan chan *entities.LocationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientChan)
	h.logger.Debug().Int("clients", len(h.clients)).Msg("client disconnected")
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
