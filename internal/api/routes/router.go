package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zatekoja/locationhierarchy/internal/api/handlers"
	"github.com/zatekoja/locationhierarchy/internal/api/middleware"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	readiness map[string]Pinger

	locationHandler *handlers.LocationHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
func NewRouter(
	locationHandler *handlers.LocationHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		readiness:       make(map[string]Pinger),
		locationHandler: locationHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready
func (r *Router) AddReadinessCheck(name string, pinger Pinger) {
	r.readiness[name] = pinger
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.readiness))
	for name, pinger := range r.readiness {
		if err := pinger.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":  status == http.StatusOK,
		"checks": checks,
	})
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	r.mux.HandleFunc("GET /ready", r.ready)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Collection and tag queries
	r.mux.HandleFunc("GET /api/locations", r.locationHandler.ListLocations)
	r.mux.HandleFunc("POST /api/locations", r.locationHandler.CreateLocation)
	r.mux.HandleFunc("GET /api/locations/roots", r.locationHandler.ListRoots)
	r.mux.HandleFunc("GET /api/locations/parent", r.locationHandler.GetParent)
	r.mux.HandleFunc("GET /api/locations/stores", r.locationHandler.ListStores)
	r.mux.HandleFunc("GET /api/locations/login", r.locationHandler.ListLoginLocations)
	r.mux.HandleFunc("GET /api/locations/treatment", r.locationHandler.ListTreatmentLocations)
	r.mux.HandleFunc("GET /api/locations/by-tag", r.locationHandler.ListByTag)
	r.mux.HandleFunc("GET /api/locations/search", r.locationHandler.SearchLocations)
	r.mux.HandleFunc("POST /api/locations/reload", r.locationHandler.Reload)

	// Current location
	r.mux.HandleFunc("GET /api/locations/current", r.locationHandler.GetCurrentLocation)
	r.mux.HandleFunc("PUT /api/locations/current", r.locationHandler.SetCurrentLocation)
	r.mux.HandleFunc("DELETE /api/locations/current", r.locationHandler.ClearCurrentLocation)

	// Single location and subtree queries
	r.mux.HandleFunc("GET /api/locations/{id}", r.locationHandler.GetLocation)
	r.mux.HandleFunc("PUT /api/locations/{id}", r.locationHandler.UpsertLocation)
	r.mux.HandleFunc("DELETE /api/locations/{id}", r.locationHandler.DeleteLocation)
	r.mux.HandleFunc("GET /api/locations/{id}/descendants", r.locationHandler.GetDescendantIDs)
	r.mux.HandleFunc("GET /api/locations/{id}/cabinet-ids", r.locationHandler.GetCabinetIDs)
	r.mux.HandleFunc("GET /api/locations/{id}/tree", r.locationHandler.GetTree)
	r.mux.HandleFunc("GET /api/locations/{id}/beds", r.locationHandler.GetBeds)
	r.mux.HandleFunc("GET /api/locations/{id}/cabinets", r.locationHandler.GetCabinets)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
