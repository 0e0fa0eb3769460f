package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

// MemoryLocationAdapter is an in-process LocationRepository. Child references are
// derived from parent links on read, the same way the Postgres adapter derives them.
type MemoryLocationAdapter struct {
	mu        sync.RWMutex
	locations []entities.Location
}

// NewMemoryLocationAdapter creates a repository seeded with locations
func NewMemoryLocationAdapter(seed ...entities.Location) *MemoryLocationAdapter {
	a := &MemoryLocationAdapter{}
	for i := range seed {
		a.locations = append(a.locations, seed[i].Clone())
	}
	return a
}

var _ repositories.LocationRepository = (*MemoryLocationAdapter)(nil)

// List returns every location in insertion order
func (a *MemoryLocationAdapter) List(ctx context.Context) ([]entities.Location, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	locations := make([]entities.Location, len(a.locations))
	for i := range a.locations {
		locations[i] = a.locations[i].Clone()
		locations[i].ChildLocations = []entities.LocationRef{}
	}
	linkChildren(locations, locations)
	return locations, nil
}

// GetByID retrieves a location by ID or UUID
func (a *MemoryLocationAdapter) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	locations, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range locations {
		if locations[i].ID == id || locations[i].UUID == id {
			return &locations[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
}

// Upsert replaces the location with the same ID or appends it
func (a *MemoryLocationAdapter) Upsert(ctx context.Context, location *entities.Location) error {
	if location.ID == "" {
		return apperrors.NewValidationError("location id is required")
	}
	now := time.Now().UTC()
	if location.CreatedAt.IsZero() {
		location.CreatedAt = now
	}
	location.UpdatedAt = now

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.locations {
		if a.locations[i].ID == location.ID {
			if location.UUID == "" {
				location.UUID = a.locations[i].UUID
			}
			a.locations[i] = storedCopy(location)
			return nil
		}
	}
	if location.UUID == "" {
		location.UUID = location.ID
	}
	a.locations = append(a.locations, storedCopy(location))
	return nil
}

func storedCopy(location *entities.Location) entities.Location {
	stored := location.Clone()
	stored.ChildLocations = nil
	return stored
}

// Delete removes a location
func (a *MemoryLocationAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.locations {
		if a.locations[i].ID == id {
			a.locations = append(a.locations[:i], a.locations[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
}
