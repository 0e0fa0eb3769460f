package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/locationhierarchy/internal/adapters/cache"
	"github.com/zatekoja/locationhierarchy/internal/adapters/database"
	"github.com/zatekoja/locationhierarchy/internal/adapters/events"
	"github.com/zatekoja/locationhierarchy/internal/adapters/search"
	"github.com/zatekoja/locationhierarchy/internal/adapters/session"
	"github.com/zatekoja/locationhierarchy/internal/api/handlers"
	"github.com/zatekoja/locationhierarchy/internal/api/middleware"
	"github.com/zatekoja/locationhierarchy/internal/api/routes"
	"github.com/zatekoja/locationhierarchy/internal/application/services"
	"github.com/zatekoja/locationhierarchy/internal/domain/hierarchy"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/redis"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
	"github.com/zatekoja/locationhierarchy/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	locationAdapter := database.NewLocationAdapter(pgClient)
	if err := locationAdapter.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure location schema")
	}

	// Redis backs the shared collection cache, the current location store and the event bus.
	// The service keeps working without it, reading straight from PostgreSQL.
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
		current       providers.CurrentLocationProvider
		cachedAdapter *database.CachedLocationAdapter
		responseCache *middleware.CacheMiddleware
		invalidation  *services.CacheInvalidationService
		reloader      handlers.Reloader

		locationRepo repositories.LocationRepository = locationAdapter
	)

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; caching, current location and events disabled")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		current = session.NewCacheCurrentLocationProvider(cacheProvider, cfg.Locations.CurrentLocationTTLSeconds)

		cachedAdapter = database.NewCachedLocationAdapter(locationAdapter, cacheProvider, cfg.Locations.CacheTTLSeconds, metrics)
		locationRepo = cachedAdapter
		responseCache = middleware.NewCacheMiddleware(cacheProvider, nil)

		invalidation = services.NewCacheInvalidationService(services.Invalidators{cachedAdapter, responseCache}, eventBus)
		if err := invalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("cache invalidation service not started")
			invalidation = nil
		} else {
			reloader = invalidation
		}
		warming := services.NewCacheWarmingService(cachedAdapter)
		warming.StartPeriodicWarming(ctx, time.Duration(cfg.Locations.CacheWarmIntervalSeconds)*time.Second)

		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis caching enabled")
	}

	var searchRepo repositories.LocationSearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; search falls back to in-memory matching")
		} else {
			adapter := search.NewTypesenseLocationAdapter(typesenseClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	locationService := services.NewLocationService(
		locationRepo,
		searchRepo,
		current,
		eventBus,
		metrics,
		hierarchy.WithMaxDepth(cfg.Locations.MaxTreeDepth),
		hierarchy.WithStrictAttributes(cfg.Locations.StrictAttributes),
	)

	locationHandler := handlers.NewLocationHandler(locationService, reloader)
	router := routes.NewRouter(locationHandler, responseCache, metrics)
	router.AddReadinessCheck("postgres", pgClient)
	if redisClient != nil {
		router.AddReadinessCheck("redis", redisClient)
	}
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if invalidation != nil {
		invalidation.Stop()
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
