package repositories

import (
	"context"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// LocationRepository defines the interface for location data operations
type LocationRepository interface {
	// List retrieves the full location collection with tags, attributes and child references resolved
	List(ctx context.Context) ([]entities.Location, error)

	// GetByID retrieves a location by ID or UUID
	GetByID(ctx context.Context, id string) (*entities.Location, error)

	// Upsert creates or replaces a location together with its tags and attributes
	Upsert(ctx context.Context, location *entities.Location) error

	// Delete deletes a location
	Delete(ctx context.Context, id string) error
}

// LocationSearchRepository defines the interface for location search operations (e.g. Typesense)
type LocationSearchRepository interface {
	// Index indexes a location
	Index(ctx context.Context, location *entities.Location) error

	// Delete removes a location from the index
	Delete(ctx context.Context, id string) error

	// Search returns the keys of matching locations, best match first
	Search(ctx context.Context, params LocationSearchParams) ([]string, error)
}

// LocationSearchParams defines parameters for location search
type LocationSearchParams struct {
	Query      string
	TagDisplay string
	Limit      int
	Offset     int
}
