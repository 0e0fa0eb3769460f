package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
)

// responseGenerationKey holds the current generation of cached responses.
// Bumping it orphans every previously cached response on all instances.
const responseGenerationKey = "http:cache:generation"

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware provides HTTP response caching for shared, user-independent reads
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
	logger       zerolog.Logger
}

// DefaultCacheRoutes lists the location reads whose responses are cached
func DefaultCacheRoutes() map[string]CacheConfig {
	return map[string]CacheConfig{
		"/api/locations/search": {TTLSeconds: 60, Enabled: true},
		"/api/locations/by-tag": {TTLSeconds: 120, Enabled: true},
		"/api/locations/stores": {TTLSeconds: 120, Enabled: true},
		"/api/locations/login":  {TTLSeconds: 120, Enabled: true},
	}
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider, routeConfigs map[string]CacheConfig) *CacheMiddleware {
	if routeConfigs == nil {
		routeConfigs = DefaultCacheRoutes()
	}
	return &CacheMiddleware{
		cache:        cache,
		routeConfigs: routeConfigs,
		logger:       observability.ComponentLogger("http_cache"),
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config, ok := m.routeConfigs[r.URL.Path]
		if !ok || !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		cacheKey, err := m.cacheKey(r)
		if err != nil {
			m.logger.Warn().Err(err).Msg("response cache unavailable")
			next.ServeHTTP(w, r)
			return
		}

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		// Only cache successful responses
		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to cache response")
			}
		}
	})
}

// Invalidate starts a new response generation
func (m *CacheMiddleware) Invalidate(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	if err := m.cache.Set(ctx, responseGenerationKey, []byte(uuid.NewString()), 0); err != nil {
		return fmt.Errorf("failed to bump response cache generation: %w", err)
	}
	return nil
}

func (m *CacheMiddleware) generation(ctx context.Context) (string, error) {
	value, err := m.cache.Get(ctx, responseGenerationKey)
	if errors.Is(err, providers.ErrCacheMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// cacheKey hashes method, path, query and the current generation
func (m *CacheMiddleware) cacheKey(r *http.Request) (string, error) {
	generation, err := m.generation(r.Context())
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s:%s:%s", generation, r.Method, r.URL.Path)
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.Query().Encode()
	}

	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:]), nil
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
