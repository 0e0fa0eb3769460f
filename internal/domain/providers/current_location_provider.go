package providers

import (
	"context"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// CurrentLocationProvider persists the location a user last selected so it can
// be restored when no location is selected for the current request
type CurrentLocationProvider interface {
	// Get returns the persisted location, or nil when nothing usable is stored
	Get(ctx context.Context, userID string) (*entities.Location, error)

	// Set persists location as the user's current location
	Set(ctx context.Context, userID string, location *entities.Location) error

	// Clear forgets the user's current location
	Clear(ctx context.Context, userID string) error
}
