package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
)

// LocationCacheInvalidator drops a cached location collection
type LocationCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Invalidators invalidates each member in order and returns the first error
type Invalidators []LocationCacheInvalidator

// Invalidate implements LocationCacheInvalidator
func (i Invalidators) Invalidate(ctx context.Context) error {
	var firstErr error
	for _, invalidator := range i {
		if invalidator == nil {
			continue
		}
		if err := invalidator.Invalidate(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CacheInvalidationService drops the cached location collection whenever a
// location change is announced, on every instance subscribed to the bus
type CacheInvalidationService struct {
	cache    LocationCacheInvalidator
	eventBus providers.EventBus
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache LocationCacheInvalidator, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		logger:   observability.ComponentLogger("cache_invalidation"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for location events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelLocationUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to location updates: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	s.logger.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.LocationEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.LocationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to invalidate location cache")
		return
	}
	s.logger.Debug().
		Str("event_id", event.ID).
		Str("location_id", event.LocationID).
		Str("event_type", string(event.EventType)).
		Msg("invalidated location cache")
}

// Reload drops the cached collection here and asks every other instance to do the same
func (s *CacheInvalidationService) Reload(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate location cache: %w", err)
	}
	event := entities.NewLocationEvent("", entities.LocationEventTypeReloaded)
	if err := s.eventBus.Publish(ctx, providers.EventChannelLocationUpdates, event); err != nil {
		return fmt.Errorf("failed to announce reload: %w", err)
	}
	return nil
}
