package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

const currentLocationKeyPrefix = "current_location:"

// CacheCurrentLocationProvider stores each user's current location in a CacheProvider
type CacheCurrentLocationProvider struct {
	cache      providers.CacheProvider
	ttlSeconds int
}

// NewCacheCurrentLocationProvider creates a provider; ttlSeconds of 0 keeps the selection until cleared
func NewCacheCurrentLocationProvider(cache providers.CacheProvider, ttlSeconds int) *CacheCurrentLocationProvider {
	return &CacheCurrentLocationProvider{cache: cache, ttlSeconds: ttlSeconds}
}

var _ providers.CurrentLocationProvider = (*CacheCurrentLocationProvider)(nil)

func currentLocationKey(userID string) string {
	return currentLocationKeyPrefix + userID
}

// Get returns the stored location. Missing, empty, "undefined" and undecodable values all read as nil.
func (p *CacheCurrentLocationProvider) Get(ctx context.Context, userID string) (*entities.Location, error) {
	if userID == "" {
		return nil, nil
	}

	data, err := p.cache.Get(ctx, currentLocationKey(userID))
	if errors.Is(err, providers.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read current location", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "undefined" || raw == "null" {
		return nil, nil
	}

	var location entities.Location
	if err := json.Unmarshal([]byte(raw), &location); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("discarding undecodable current location")
		return nil, nil
	}
	return &location, nil
}

// Set stores location as the user's current location
func (p *CacheCurrentLocationProvider) Set(ctx context.Context, userID string, location *entities.Location) error {
	if userID == "" {
		return apperrors.NewValidationError("user id is required")
	}
	if location == nil {
		return p.Clear(ctx, userID)
	}

	data, err := json.Marshal(location)
	if err != nil {
		return apperrors.NewInternalError("failed to encode current location", err)
	}
	if err := p.cache.Set(ctx, currentLocationKey(userID), data, p.ttlSeconds); err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to store current location for %s", userID), err)
	}
	return nil
}

// Clear forgets the user's current location
func (p *CacheCurrentLocationProvider) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.NewValidationError("user id is required")
	}
	if err := p.cache.Delete(ctx, currentLocationKey(userID)); err != nil {
		return apperrors.NewExternalError("failed to clear current location", err)
	}
	return nil
}
