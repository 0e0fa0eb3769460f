package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/hierarchy"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
)

// UserIDHeader identifies whose current location a request reads or writes
const UserIDHeader = "X-User-ID"

const maxSearchLimit = 100

// LocationService is the subset of services.LocationService the handler serves
type LocationService interface {
	List(ctx context.Context) ([]entities.Location, error)
	GetByID(ctx context.Context, id string) (*entities.Location, error)
	Roots(ctx context.Context) ([]entities.Location, error)
	Parent(ctx context.Context) (*entities.Location, error)
	Stores(ctx context.Context) ([]entities.Location, error)
	LoginLocations(ctx context.Context) ([]entities.Location, error)
	TreatmentLocations(ctx context.Context) ([]entities.TreatmentLocation, error)
	ByTag(ctx context.Context, display string) ([]entities.Location, error)
	ByTagName(ctx context.Context, name string) ([]entities.Location, error)
	ByKind(ctx context.Context, kind string) ([]entities.Location, error)
	Descendants(ctx context.Context, id string) ([]string, error)
	CabinetIDs(ctx context.Context, id string) ([]string, error)
	WardTree(ctx context.Context, id string) (*entities.LocationMember, error)
	GroupUnits(ctx context.Context, id string, kind hierarchy.UnitKind) (*hierarchy.UnitGrouping, error)
	Search(ctx context.Context, params repositories.LocationSearchParams) ([]entities.Location, error)
	CurrentLocation(ctx context.Context, userID, selectedID string) (*entities.CurrentLocationView, error)
	SetCurrentLocation(ctx context.Context, userID, id string) (*entities.CurrentLocationView, error)
	ClearCurrentLocation(ctx context.Context, userID string) error
	Upsert(ctx context.Context, location *entities.Location) (*entities.Location, error)
	Delete(ctx context.Context, id string) error
}

// Reloader drops cached location data across instances
type Reloader interface {
	Reload(ctx context.Context) error
}

// LocationHandler handles location-related HTTP requests
type LocationHandler struct {
	service  LocationService
	reloader Reloader
}

// NewLocationHandler creates a new location handler. reloader may be nil.
func NewLocationHandler(service LocationService, reloader Reloader) *LocationHandler {
	return &LocationHandler{
		service:  service,
		reloader: reloader,
	}
}

func respondWithLocations(w http.ResponseWriter, locations []entities.Location) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// ListLocations handles GET /api/locations, optionally filtered by ?kind=
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	var (
		locations []entities.Location
		err       error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		locations, err = h.service.ByKind(r.Context(), kind)
	} else {
		locations, err = h.service.List(r.Context())
	}
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithLocations(w, locations)
}

// GetLocation handles GET /api/locations/{id}
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	location, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, location)
}

// ListRoots handles GET /api/locations/roots
func (h *LocationHandler) ListRoots(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.Roots)
}

// GetParent handles GET /api/locations/parent
func (h *LocationHandler) GetParent(w http.ResponseWriter, r *http.Request) {
	location, err := h.service.Parent(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, location)
}

// ListStores handles GET /api/locations/stores
func (h *LocationHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.Stores)
}

// ListLoginLocations handles GET /api/locations/login
func (h *LocationHandler) ListLoginLocations(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.LoginLocations)
}

// ListTreatmentLocations handles GET /api/locations/treatment
func (h *LocationHandler) ListTreatmentLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.TreatmentLocations(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// ListByTag handles GET /api/locations/by-tag?display= or ?name=
func (h *LocationHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	display, name := query.Get("display"), query.Get("name")

	var (
		locations []entities.Location
		err       error
	)
	switch {
	case display != "":
		locations, err = h.service.ByTag(r.Context(), display)
	case name != "":
		locations, err = h.service.ByTagName(r.Context(), name)
	default:
		respondWithError(w, http.StatusBadRequest, "display or name query parameter is required")
		return
	}
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithLocations(w, locations)
}

// SearchLocations handles GET /api/locations/search?q=&tag=&limit=&offset=
func (h *LocationHandler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := repositories.LocationSearchParams{
		Query:      query.Get("q"),
		TagDisplay: query.Get("tag"),
		Limit:      20,
	}

	if limit := query.Get("limit"); limit != "" {
		value, err := strconv.Atoi(limit)
		if err != nil || value <= 0 || value > maxSearchLimit {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		params.Limit = value
	}
	if offset := query.Get("offset"); offset != "" {
		value, err := strconv.Atoi(offset)
		if err != nil || value < 0 {
			respondWithError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		params.Offset = value
	}

	locations, err := h.service.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithLocations(w, locations)
}

// GetCurrentLocation handles GET /api/locations/current?selected=
func (h *LocationHandler) GetCurrentLocation(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CurrentLocation(r.Context(), r.Header.Get(UserIDHeader), r.URL.Query().Get("selected"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

type setCurrentLocationRequest struct {
	ID string `json:"id"`
}

// SetCurrentLocation handles PUT /api/locations/current
func (h *LocationHandler) SetCurrentLocation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, UserIDHeader+" header is required")
		return
	}

	var req setCurrentLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		respondWithError(w, http.StatusBadRequest, "request body must be {\"id\": \"<location id>\"}")
		return
	}

	view, err := h.service.SetCurrentLocation(r.Context(), userID, req.ID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// ClearCurrentLocation handles DELETE /api/locations/current
func (h *LocationHandler) ClearCurrentLocation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, UserIDHeader+" header is required")
		return
	}
	if err := h.service.ClearCurrentLocation(r.Context(), userID); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateLocation handles POST /api/locations
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "", http.StatusCreated)
}

// UpsertLocation handles PUT /api/locations/{id}
func (h *LocationHandler) UpsertLocation(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, r.PathValue("id"), http.StatusOK)
}

func (h *LocationHandler) upsert(w http.ResponseWriter, r *http.Request, id string, status int) {
	var location entities.Location
	if err := json.NewDecoder(r.Body).Decode(&location); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid location body")
		return
	}
	if id != "" {
		if location.ID != "" && location.ID != id {
			respondWithError(w, http.StatusBadRequest, "location id does not match path")
			return
		}
		location.ID = id
	}

	saved, err := h.service.Upsert(r.Context(), &location)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, status, saved)
}

// DeleteLocation handles DELETE /api/locations/{id}
func (h *LocationHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDescendantIDs handles GET /api/locations/{id}/descendants
func (h *LocationHandler) GetDescendantIDs(w http.ResponseWriter, r *http.Request) {
	h.ids(w, r, h.service.Descendants)
}

// GetCabinetIDs handles GET /api/locations/{id}/cabinet-ids
func (h *LocationHandler) GetCabinetIDs(w http.ResponseWriter, r *http.Request) {
	h.ids(w, r, h.service.CabinetIDs)
}

// GetTree handles GET /api/locations/{id}/tree
func (h *LocationHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.WardTree(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tree)
}

// GetBeds handles GET /api/locations/{id}/beds
func (h *LocationHandler) GetBeds(w http.ResponseWriter, r *http.Request) {
	h.group(w, r, hierarchy.UnitKindBed)
}

// GetCabinets handles GET /api/locations/{id}/cabinets
func (h *LocationHandler) GetCabinets(w http.ResponseWriter, r *http.Request) {
	h.group(w, r, hierarchy.UnitKindCabinet)
}

// Reload handles POST /api/locations/reload
func (h *LocationHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		respondWithError(w, http.StatusServiceUnavailable, "reload is not available")
		return
	}
	if err := h.reloader.Reload(r.Context()); err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *LocationHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context) ([]entities.Location, error)) {
	locations, err := fn(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithLocations(w, locations)
}

func (h *LocationHandler) ids(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) ([]string, error)) {
	id := r.PathValue("id")
	ids, err := fn(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"ids":   ids,
		"count": len(ids),
	})
}

func (h *LocationHandler) group(w http.ResponseWriter, r *http.Request, kind hierarchy.UnitKind) {
	grouping, err := h.service.GroupUnits(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, grouping)
}
