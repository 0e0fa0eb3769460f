package providers

import (
	"context"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to location events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.LocationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.LocationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelLocationUpdates is the channel every location change is announced on
const EventChannelLocationUpdates = "locations:updates"
