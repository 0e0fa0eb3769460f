package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
)

// CacheWarmingService keeps the location collection cache populated so the
// first request after a deploy or an invalidation does not pay for the load
type CacheWarmingService struct {
	repo   repositories.LocationRepository
	logger zerolog.Logger
}

// NewCacheWarmingService creates a new cache warming service. repo should be the cached repository.
func NewCacheWarmingService(repo repositories.LocationRepository) *CacheWarmingService {
	return &CacheWarmingService{
		repo:   repo,
		logger: observability.ComponentLogger("cache_warming"),
	}
}

// WarmCache loads the collection through the cache
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	start := time.Now()
	locations, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm location cache: %w", err)
	}
	s.logger.Debug().Int("locations", len(locations)).Dur("duration", time.Since(start)).Msg("location cache warmed")
	return nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmCache(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial cache warming failed")
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("stopping cache warming")
				return
			case <-ticker.C:
				if err := s.WarmCache(ctx); err != nil {
					s.logger.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	s.logger.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
