package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/locationhierarchy/internal/adapters/database"
	"github.com/zatekoja/locationhierarchy/internal/application/services"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/hierarchy"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

func location(id, parent string, tags ...string) entities.Location {
	l := entities.Location{ID: id, UUID: "uuid-" + id, Name: id, Display: id}
	if parent != "" {
		l.ParentLocation = &entities.LocationRef{UUID: parent}
	}
	for _, tag := range tags {
		l.Tags = append(l.Tags, entities.Tag{Name: tag, Display: tag})
	}
	return l
}

// ward:
//
//	hospital
//	├── ward (login)
//	│   ├── room (treatment room, billing concept)
//	│   │   └── bed-1
//	│   └── bed-2
//	pharmacy (store, main store, second root)
//	└── cabinet
func seedRepository() *database.MemoryLocationAdapter {
	room := location("room", "ward", "Treatment Room")
	room.Attributes = []entities.Attribute{{AttributeType: entities.AttributeType{Display: "Billing concept"}, Value: "concept-7"}}
	bed1 := location("bed-1", "room", "Bed Location")
	bed1.Attributes = []entities.Attribute{{AttributeType: entities.AttributeType{Display: "Patients per bed"}, Value: "2"}}

	return database.NewMemoryLocationAdapter(
		location("hospital", ""),
		location("ward", "hospital", "Login Location"),
		room,
		bed1,
		location("bed-2", "ward", "Bed Location"),
		location("pharmacy", "", "Store", "Main Store"),
		location("cabinet", "pharmacy", "Cabinet Location"),
	)
}

func newService(opts ...hierarchy.Option) *services.LocationService {
	return services.NewLocationService(seedRepository(), nil, nil, nil, nil, opts...)
}

func ids(locations []entities.Location) []string {
	result := make([]string, 0, len(locations))
	for _, l := range locations {
		result = append(result, l.ID)
	}
	return result
}

func TestLocationService_Lookups(t *testing.T) {
	ctx := context.Background()
	service := newService()

	roots, err := service.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hospital", "pharmacy"}, ids(roots))

	parent, err := service.Parent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hospital", parent.ID)

	stores, err := service.Stores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pharmacy"}, ids(stores))

	login, err := service.LoginLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ward"}, ids(login))

	treatment, err := service.TreatmentLocations(ctx)
	require.NoError(t, err)
	require.Len(t, treatment, 1)
	require.NotNil(t, treatment[0].BillingConcept)
	assert.Equal(t, "concept-7", *treatment[0].BillingConcept)

	byTag, err := service.ByTag(ctx, "Bed Location")
	require.NoError(t, err)
	assert.Equal(t, []string{"bed-1", "bed-2"}, ids(byTag))

	byKind, err := service.ByKind(ctx, "bed location")
	require.NoError(t, err)
	assert.Equal(t, []string{"bed-1", "bed-2"}, ids(byKind))

	_, err = service.ByKind(ctx, "Pharmacy")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestLocationService_GetByID(t *testing.T) {
	ctx := context.Background()
	service := newService()

	ward, err := service.GetByID(ctx, "uuid-ward")
	require.NoError(t, err)
	assert.Equal(t, "ward", ward.ID)
	assert.Len(t, ward.ChildLocations, 2)

	_, err = service.GetByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLocationService_Descendants(t *testing.T) {
	ctx := context.Background()
	service := newService()

	descendants, err := service.Descendants(ctx, "ward")
	require.NoError(t, err)
	assert.Equal(t, []string{"ward", "room", "bed-1", "bed-2"}, descendants)

	unknown, err := service.Descendants(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, unknown)

	cabinets, err := service.CabinetIDs(ctx, "pharmacy")
	require.NoError(t, err)
	assert.Equal(t, []string{"cabinet", "pharmacy"}, cabinets)
}

func TestLocationService_WardTree(t *testing.T) {
	ctx := context.Background()
	service := newService()

	tree, err := service.WardTree(ctx, "ward")
	require.NoError(t, err)
	require.Len(t, tree.ChildMembers, 2)
	room := tree.ChildMembers[0]
	assert.Equal(t, "room", room.ID)
	require.Len(t, room.ChildMembers, 1)
	assert.True(t, room.ChildMembers[0].IsBed)
	assert.Equal(t, 2, room.ChildMembers[0].PatientsPerBed)

	_, err = service.WardTree(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLocationService_GroupBeds(t *testing.T) {
	ctx := context.Background()
	service := newService()

	grouping, err := service.GroupBeds(ctx, "hospital")
	require.NoError(t, err)
	assert.False(t, grouping.Direct)
	require.Len(t, grouping.Groups, 1)
	assert.Equal(t, "ward", grouping.Groups[0].Location.ID)
	assert.Equal(t, []string{"bed-1", "bed-2"}, ids(grouping.Groups[0].Units))

	_, err = service.GroupCabinets(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLocationService_StrictAttributes(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMemoryLocationAdapter(
		location("ward", ""),
		func() entities.Location {
			bed := location("bed", "ward", "Bed Location")
			bed.Attributes = []entities.Attribute{{AttributeType: entities.AttributeType{Display: "Patients per bed"}, Value: "two"}}
			return bed
		}(),
	)

	lenient := services.NewLocationService(repo, nil, nil, nil, nil)
	tree, err := lenient.WardTree(ctx, "ward")
	require.NoError(t, err)
	assert.Equal(t, 1, tree.ChildMembers[0].PatientsPerBed)

	strict := services.NewLocationService(repo, nil, nil, nil, nil, hierarchy.WithStrictAttributes(true))
	_, err = strict.WardTree(ctx, "ward")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedAttribute))
}

func TestLocationService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the collection without a search engine", func(t *testing.T) {
		service := newService()
		results, err := service.Search(ctx, repositories.LocationSearchParams{Query: "BED", Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"bed-2"}, ids(results))
	})

	t.Run("resolves search engine hits against the collection", func(t *testing.T) {
		search := new(mockSearchRepository)
		params := repositories.LocationSearchParams{Query: "cab"}
		search.On("Search", mock.Anything, params).Return([]string{"cabinet", "stale-id"}, nil)

		service := services.NewLocationService(seedRepository(), search, nil, nil, nil)
		results, err := service.Search(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, []string{"cabinet"}, ids(results))
	})

	t.Run("wraps search engine failures", func(t *testing.T) {
		search := new(mockSearchRepository)
		search.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		service := services.NewLocationService(seedRepository(), search, nil, nil, nil)
		_, err := service.Search(ctx, repositories.LocationSearchParams{Query: "x"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})
}

func TestLocationService_CurrentLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("selected location wins", func(t *testing.T) {
		current := new(mockCurrentLocationProvider)
		service := services.NewLocationService(seedRepository(), nil, current, nil, nil)

		view, err := service.CurrentLocation(ctx, "nurse", "room")
		require.NoError(t, err)
		assert.Equal(t, "uuid-room", view.ID)
		current.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("falls back to the persisted location", func(t *testing.T) {
		current := new(mockCurrentLocationProvider)
		stored := location("pharmacy", "", "Main Store")
		stored.Attributes = []entities.Attribute{{AttributeType: entities.AttributeType{Display: "Forms"}, Value: "form-1"}}
		current.On("Get", mock.Anything, "nurse").Return(&stored, nil)

		service := services.NewLocationService(seedRepository(), nil, current, nil, nil)
		view, err := service.CurrentLocation(ctx, "nurse", "")
		require.NoError(t, err)
		assert.Equal(t, "uuid-pharmacy", view.ID)
		assert.True(t, view.IsMainStore)
		assert.False(t, view.MinorProcedureLocation)
		assert.Equal(t, []string{"form-1"}, view.Forms)
	})

	t.Run("absent when nothing is selected or stored", func(t *testing.T) {
		current := new(mockCurrentLocationProvider)
		current.On("Get", mock.Anything, "nurse").Return(nil, nil)

		service := services.NewLocationService(seedRepository(), nil, current, nil, nil)
		_, err := service.CurrentLocation(ctx, "nurse", "")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestLocationService_SetCurrentLocation(t *testing.T) {
	ctx := context.Background()
	current := new(mockCurrentLocationProvider)
	current.On("Set", mock.Anything, "nurse", mock.MatchedBy(func(l *entities.Location) bool {
		return l.ID == "ward"
	})).Return(nil).Once()

	service := services.NewLocationService(seedRepository(), nil, current, nil, nil)
	view, err := service.SetCurrentLocation(ctx, "nurse", "ward")
	require.NoError(t, err)
	assert.Equal(t, "uuid-ward", view.ID)

	_, err = service.SetCurrentLocation(ctx, "nurse", "missing")
	assert.True(t, apperrors.IsNotFound(err))

	current.AssertExpectations(t)
}

func TestLocationService_Upsert(t *testing.T) {
	ctx := context.Background()
	search := new(mockSearchRepository)
	bus := new(mockEventBus)
	service := services.NewLocationService(seedRepository(), search, nil, bus, nil)

	search.On("Index", mock.Anything, mock.Anything).Return(errors.New("index down")).Once()
	bus.On("Publish", mock.Anything, providers.EventChannelLocationUpdates, mock.MatchedBy(func(e *entities.LocationEvent) bool {
		return e.EventType == entities.LocationEventTypeUpserted
	})).Return(nil).Once()

	created, err := service.Upsert(ctx, &entities.Location{
		Name:           "Bed 3",
		ParentLocation: &entities.LocationRef{UUID: "uuid-room"},
		Tags:           []entities.Tag{{Display: "Bed Location"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "room", created.ParentLocation.UUID)

	room, err := service.GetByID(ctx, "room")
	require.NoError(t, err)
	assert.Len(t, room.ChildLocations, 2)

	search.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestLocationService_UpsertKeepsStoredUUID(t *testing.T) {
	ctx := context.Background()
	service := newService()

	updated, err := service.Upsert(ctx, &entities.Location{
		ID:             "ward",
		Name:           "Ward renamed",
		ParentLocation: &entities.LocationRef{UUID: "hospital"},
	})
	require.NoError(t, err)
	assert.Equal(t, "uuid-ward", updated.UUID)
	assert.Equal(t, "Ward renamed", updated.Name)

	ward, err := service.GetByID(ctx, "uuid-ward")
	require.NoError(t, err)
	assert.Len(t, ward.ChildLocations, 2)

	created, err := service.Upsert(ctx, &entities.Location{ID: "bay", Name: "Bay"})
	require.NoError(t, err)
	assert.Equal(t, "bay", created.UUID)
}

func TestLocationService_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	service := newService()

	_, err := service.Upsert(ctx, &entities.Location{ID: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = service.Upsert(ctx, &entities.Location{ID: "x", Name: "x", ParentLocation: &entities.LocationRef{UUID: "missing"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	ward := location("ward", "bed-2", "Login Location")
	_, err = service.Upsert(ctx, &ward)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestLocationService_Delete(t *testing.T) {
	ctx := context.Background()
	bus := new(mockEventBus)
	bus.On("Publish", mock.Anything, providers.EventChannelLocationUpdates, mock.Anything).Return(nil).Once()
	service := services.NewLocationService(seedRepository(), nil, nil, bus, nil)

	err := service.Delete(ctx, "ward")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	require.NoError(t, service.Delete(ctx, "bed-2"))
	_, err = service.GetByID(ctx, "bed-2")
	assert.True(t, apperrors.IsNotFound(err))

	bus.AssertExpectations(t)
}
