package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

// LocationsCacheKey is the shared cache key holding the full location collection
const LocationsCacheKey = "locations:all"

const localCacheSize = 1

// CachedLocationAdapter wraps a LocationRepository with a process-local LRU in front of the shared cache
type CachedLocationAdapter struct {
	adapter repositories.LocationRepository
	cache   providers.CacheProvider
	local   *expirable.LRU[string, []entities.Location]
	ttl     int
	metrics *observability.Metrics
}

// NewCachedLocationAdapter creates a new cached location adapter. ttlSeconds of 0 keeps entries until invalidated.
func NewCachedLocationAdapter(adapter repositories.LocationRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) *CachedLocationAdapter {
	return &CachedLocationAdapter{
		adapter: adapter,
		cache:   cache,
		local:   expirable.NewLRU[string, []entities.Location](localCacheSize, nil, time.Duration(ttlSeconds)*time.Second),
		ttl:     ttlSeconds,
		metrics: metrics,
	}
}

var _ repositories.LocationRepository = (*CachedLocationAdapter)(nil)

// List returns the collection from the local cache, then the shared cache, then the database
func (a *CachedLocationAdapter) List(ctx context.Context) ([]entities.Location, error) {
	if locations, ok := a.local.Get(LocationsCacheKey); ok {
		recordCacheRequest("local", true)
		return cloneLocations(locations), nil
	}
	recordCacheRequest("local", false)

	cached, err := a.cache.Get(ctx, LocationsCacheKey)
	switch {
	case err == nil:
		var locations []entities.Location
		decodeErr := json.Unmarshal(cached, &locations)
		if decodeErr == nil {
			recordCacheRequest("shared", true)
			observability.RecordCacheHit(ctx, a.metrics, LocationsCacheKey)
			a.local.Add(LocationsCacheKey, locations)
			return cloneLocations(locations), nil
		}
		log.Warn().Err(decodeErr).Str("key", LocationsCacheKey).Msg("failed to decode cached locations")
	case !errors.Is(err, providers.ErrCacheMiss):
		log.Warn().Err(err).Str("key", LocationsCacheKey).Msg("location cache unavailable")
	}
	recordCacheRequest("shared", false)
	observability.RecordCacheMiss(ctx, a.metrics, LocationsCacheKey)

	start := time.Now()
	locations, err := a.adapter.List(ctx)
	observability.RecordDBMetric(ctx, a.metrics, "locations.list", time.Since(start))
	if err != nil {
		return nil, err
	}

	a.local.Add(LocationsCacheKey, locations)
	if data, err := json.Marshal(locations); err == nil {
		if err := a.cache.Set(ctx, LocationsCacheKey, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("key", LocationsCacheKey).Msg("failed to cache locations")
		}
	}

	return cloneLocations(locations), nil
}

// GetByID resolves a location by ID or UUID from the cached collection
func (a *CachedLocationAdapter) GetByID(ctx context.Context, id string) (*entities.Location, error) {
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

// Upsert writes through to the database and invalidates the cached collection
func (a *CachedLocationAdapter) Upsert(ctx context.Context, location *entities.Location) error {
	start := time.Now()
	err := a.adapter.Upsert(ctx, location)
	observability.RecordDBMetric(ctx, a.metrics, "locations.upsert", time.Since(start))
	if err != nil {
		return err
	}

	a.invalidate(ctx, "upsert")
	return nil
}

// Delete deletes through to the database and invalidates the cached collection
func (a *CachedLocationAdapter) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := a.adapter.Delete(ctx, id)
	observability.RecordDBMetric(ctx, a.metrics, "locations.delete", time.Since(start))
	if err != nil {
		return err
	}

	a.invalidate(ctx, "delete")
	return nil
}

// Invalidate drops the collection from both cache layers
func (a *CachedLocationAdapter) Invalidate(ctx context.Context) error {
	return a.drop(ctx, "event")
}

// InvalidateLocal drops only the process-local copy, for changes already cleared from the shared cache
func (a *CachedLocationAdapter) InvalidateLocal() {
	a.local.Purge()
	recordCacheInvalidate("local")
}

func (a *CachedLocationAdapter) invalidate(ctx context.Context, reason string) {
	if err := a.drop(ctx, reason); err != nil {
		log.Warn().Err(err).Str("key", LocationsCacheKey).Msg("failed to invalidate location cache")
	}
}

func (a *CachedLocationAdapter) drop(ctx context.Context, reason string) error {
	a.local.Purge()
	recordCacheInvalidate(reason)
	if err := a.cache.Delete(ctx, LocationsCacheKey); err != nil {
		return fmt.Errorf("failed to delete %s: %w", LocationsCacheKey, err)
	}
	return nil
}

func cloneLocations(locations []entities.Location) []entities.Location {
	clones := make([]entities.Location, len(locations))
	for i := range locations {
		clones[i] = locations[i].Clone()
	}
	return clones
}
