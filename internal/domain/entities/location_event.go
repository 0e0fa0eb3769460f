package entities

import (
	"time"

	"github.com/google/uuid"
)

// LocationEventType represents the type of location event
type LocationEventType string

const (
	LocationEventTypeUpserted LocationEventType = "location_upserted"
	LocationEventTypeDeleted  LocationEventType = "location_deleted"
	LocationEventTypeReloaded LocationEventType = "locations_reloaded"
)

// LocationEvent announces a change to the location collection
type LocationEvent struct {
	ID         string            `json:"id"`
	LocationID string            `json:"location_id,omitempty"`
	EventType  LocationEventType `json:"event_type"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewLocationEvent creates a new location event
func NewLocationEvent(locationID string, eventType LocationEventType) *LocationEvent {
	return &LocationEvent{
		ID:         uuid.NewString(),
		LocationID: locationID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
	}
}
