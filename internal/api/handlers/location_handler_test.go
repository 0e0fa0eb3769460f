package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/hierarchy"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

type mockLocationService struct {
	mock.Mock
}

func (m *mockLocationService) locations(args mock.Arguments) ([]entities.Location, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Location), args.Error(1)
}

func (m *mockLocationService) location(args mock.Arguments) (*entities.Location, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Location), args.Error(1)
}

func (m *mockLocationService) stringSlice(args mock.Arguments) ([]string, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockLocationService) view(args mock.Arguments) (*entities.CurrentLocationView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CurrentLocationView), args.Error(1)
}

func (m *mockLocationService) List(ctx context.Context) ([]entities.Location, error) {
	return m.locations(m.Called(ctx))
}

func (m *mockLocationService) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	return m.location(m.Called(ctx, id))
}

func (m *mockLocationService) Roots(ctx context.Context) ([]entities.Location, error) {
	return m.locations(m.Called(ctx))
}

func (m *mockLocationService) Parent(ctx context.Context) (*entities.Location, error) {
	return m.location(m.Called(ctx))
}

func (m *mockLocationService) Stores(ctx context.Context) ([]entities.Location, error) {
	return m.locations(m.Called(ctx))
}

func (m *mockLocationService) LoginLocations(ctx context.Context) ([]entities.Location, error) {
	return m.locations(m.Called(ctx))
}

func (m *mockLocationService) TreatmentLocations(ctx context.Context) ([]entities.TreatmentLocation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.TreatmentLocation), args.Error(1)
}

func (m *mockLocationService) ByTag(ctx context.Context, display string) ([]entities.Location, error) {
	return m.locations(m.Called(ctx, display))
}

func (m *mockLocationService) ByTagName(ctx context.Context, name string) ([]entities.Location, error) {
	return m.locations(m.Called(ctx, name))
}

func (m *mockLocationService) ByKind(ctx context.Context, kind string) ([]entities.Location, error) {
	return m.locations(m.Called(ctx, kind))
}

func (m *mockLocationService) Descendants(ctx context.Context, id string) ([]string, error) {
	return m.stringSlice(m.Called(ctx, id))
}

func (m *mockLocationService) CabinetIDs(ctx context.Context, id string) ([]string, error) {
	return m.stringSlice(m.Called(ctx, id))
}

func (m *mockLocationService) WardTree(ctx context.Context, id string) (*entities.LocationMember, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LocationMember), args.Error(1)
}

func (m *mockLocationService) GroupUnits(ctx context.Context, id string, kind hierarchy.UnitKind) (*hierarchy.UnitGrouping, error) {
	args := m.Called(ctx, id, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hierarchy.UnitGrouping), args.Error(1)
}

func (m *mockLocationService) Search(ctx context.Context, params repositories.LocationSearchParams) ([]entities.Location, error) {
	return m.locations(m.Called(ctx, params))
}

func (m *mockLocationService) CurrentLocation(ctx context.Context, userID, selectedID string) (*entities.CurrentLocationView, error) {
	return m.view(m.Called(ctx, userID, selectedID))
}

func (m *mockLocationService) SetCurrentLocation(ctx context.Context, userID, id string) (*entities.CurrentLocationView, error) {
	return m.view(m.Called(ctx, userID, id))
}

func (m *mockLocationService) ClearCurrentLocation(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockLocationService) Upsert(ctx context.Context, location *entities.Location) (*entities.Location, error) {
	return m.location(m.Called(ctx, location))
}

func (m *mockLocationService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newTestMux(h *LocationHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/locations", h.ListLocations)
	mux.HandleFunc("POST /api/locations", h.CreateLocation)
	mux.HandleFunc("GET /api/locations/parent", h.GetParent)
	mux.HandleFunc("GET /api/locations/by-tag", h.ListByTag)
	mux.HandleFunc("GET /api/locations/search", h.SearchLocations)
	mux.HandleFunc("GET /api/locations/current", h.GetCurrentLocation)
	mux.HandleFunc("PUT /api/locations/current", h.SetCurrentLocation)
	mux.HandleFunc("POST /api/locations/reload", h.Reload)
	mux.HandleFunc("GET /api/locations/{id}", h.GetLocation)
	mux.HandleFunc("PUT /api/locations/{id}", h.UpsertLocation)
	mux.HandleFunc("DELETE /api/locations/{id}", h.DeleteLocation)
	mux.HandleFunc("GET /api/locations/{id}/descendants", h.GetDescendantIDs)
	mux.HandleFunc("GET /api/locations/{id}/tree", h.GetTree)
	mux.HandleFunc("GET /api/locations/{id}/beds", h.GetBeds)
	return mux
}

func serve(t *testing.T, mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLocationHandler_ListLocations(t *testing.T) {
	service := new(mockLocationService)
	service.On("List", mock.Anything).Return([]entities.Location{{ID: "ward"}, {ID: "bed"}}, nil)
	service.On("ByKind", mock.Anything, "store").Return([]entities.Location{{ID: "pharmacy"}}, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations?kind=store", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])
}

func TestLocationHandler_GetLocation_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", apperrors.NewNotFoundError("location with id x not found"), http.StatusNotFound},
		{"validation", apperrors.NewValidationError("bad"), http.StatusBadRequest},
		{"conflict", apperrors.NewConflictError("cycle"), http.StatusConflict},
		{"malformed attribute", apperrors.NewMalformedAttributeError("bad count", nil), http.StatusUnprocessableEntity},
		{"cycle detected", apperrors.NewCycleDetectedError("loop"), http.StatusUnprocessableEntity},
		{"external", apperrors.NewExternalError("search down", errors.New("timeout")), http.StatusBadGateway},
		{"internal", apperrors.NewInternalError("db", errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockLocationService)
			service.On("GetByID", mock.Anything, "x").Return(nil, tt.err)

			rec := serve(t, newTestMux(NewLocationHandler(service, nil)), httptest.NewRequest(http.MethodGet, "/api/locations/x", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestLocationHandler_GetParent(t *testing.T) {
	service := new(mockLocationService)
	service.On("Parent", mock.Anything).Return(&entities.Location{ID: "hospital"}, nil)

	rec := serve(t, newTestMux(NewLocationHandler(service, nil)), httptest.NewRequest(http.MethodGet, "/api/locations/parent", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hospital", decode(t, rec)["id"])
}

func TestLocationHandler_ListByTag(t *testing.T) {
	service := new(mockLocationService)
	service.On("ByTag", mock.Anything, "Bed Location").Return([]entities.Location{{ID: "bed"}}, nil)
	service.On("ByTagName", mock.Anything, "bed").Return([]entities.Location{}, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/by-tag?display=Bed+Location", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/by-tag?name=bed", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["count"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/by-tag", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationHandler_SearchLocations(t *testing.T) {
	service := new(mockLocationService)
	service.On("Search", mock.Anything, repositories.LocationSearchParams{Query: "ward", TagDisplay: "Login Location", Limit: 5, Offset: 10}).
		Return([]entities.Location{{ID: "ward"}}, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/search?q=ward&tag=Login+Location&limit=5&offset=10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/search?q=ward&limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/search?offset=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationHandler_CurrentLocation(t *testing.T) {
	service := new(mockLocationService)
	view := &entities.CurrentLocationView{Location: entities.Location{ID: "uuid-ward"}, Forms: []string{}}
	service.On("CurrentLocation", mock.Anything, "nurse", "").Return(view, nil)
	service.On("SetCurrentLocation", mock.Anything, "nurse", "ward").Return(view, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/locations/current", nil)
	req.Header.Set(UserIDHeader, "nurse")
	rec := serve(t, mux, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uuid-ward", decode(t, rec)["id"])

	req = httptest.NewRequest(http.MethodPut, "/api/locations/current", strings.NewReader(`{"id":"ward"}`))
	req.Header.Set(UserIDHeader, "nurse")
	rec = serve(t, mux, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/locations/current", strings.NewReader(`{"id":"ward"}`))
	rec = serve(t, mux, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/locations/current", strings.NewReader(`{}`))
	req.Header.Set(UserIDHeader, "nurse")
	rec = serve(t, mux, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	service.AssertExpectations(t)
}

func TestLocationHandler_UpsertLocation(t *testing.T) {
	service := new(mockLocationService)
	service.On("Upsert", mock.Anything, mock.MatchedBy(func(l *entities.Location) bool {
		return l.ID == "ward" && l.Name == "Ward 1"
	})).Return(&entities.Location{ID: "ward", Name: "Ward 1"}, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodPut, "/api/locations/ward", strings.NewReader(`{"name":"Ward 1"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ward 1", decode(t, rec)["name"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodPut, "/api/locations/ward", strings.NewReader(`{"id":"other","name":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, mux, httptest.NewRequest(http.MethodPut, "/api/locations/ward", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationHandler_CreateAndDelete(t *testing.T) {
	service := new(mockLocationService)
	service.On("Upsert", mock.Anything, mock.Anything).Return(&entities.Location{ID: "generated"}, nil)
	service.On("Delete", mock.Anything, "ward").Return(apperrors.NewConflictError("location ward still has 2 child locations"))
	service.On("Delete", mock.Anything, "bed").Return(nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader(`{"name":"Bed"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(t, mux, httptest.NewRequest(http.MethodDelete, "/api/locations/ward", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, mux, httptest.NewRequest(http.MethodDelete, "/api/locations/bed", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLocationHandler_HierarchyEndpoints(t *testing.T) {
	service := new(mockLocationService)
	service.On("Descendants", mock.Anything, "ward").Return([]string{"ward", "room", "bed"}, nil)
	service.On("WardTree", mock.Anything, "ward").Return(&entities.LocationMember{
		Location:     entities.Location{ID: "ward"},
		ChildMembers: []*entities.LocationMember{},
	}, nil)
	service.On("GroupUnits", mock.Anything, "ward", hierarchy.UnitKindBed).Return(&hierarchy.UnitGrouping{
		Kind:     "bed",
		Location: entities.Location{ID: "ward"},
		Direct:   true,
		Groups:   []hierarchy.UnitGroup{},
	}, nil)
	mux := newTestMux(NewLocationHandler(service, nil))

	rec := serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/ward/descendants", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []interface{}{"ward", "room", "bed"}, body["ids"])
	assert.Equal(t, float64(3), body["count"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/ward/tree", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["childMembers"])

	rec = serve(t, mux, httptest.NewRequest(http.MethodGet, "/api/locations/ward/beds", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["direct"])
}

type stubReloader struct {
	err error
}

func (s stubReloader) Reload(ctx context.Context) error {
	return s.err
}

func TestLocationHandler_Reload(t *testing.T) {
	rec := serve(t, newTestMux(NewLocationHandler(new(mockLocationService), nil)), httptest.NewRequest(http.MethodPost, "/api/locations/reload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, newTestMux(NewLocationHandler(new(mockLocationService), stubReloader{})), httptest.NewRequest(http.MethodPost, "/api/locations/reload", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(t, newTestMux(NewLocationHandler(new(mockLocationService), stubReloader{err: errors.New("redis down")})), httptest.NewRequest(http.MethodPost, "/api/locations/reload", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
