package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/hierarchy"
	"github.com/zatekoja/locationhierarchy/internal/domain/providers"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// LocationService answers hierarchy queries over the location collection
type LocationService struct {
	repo       repositories.LocationRepository
	searchRepo repositories.LocationSearchRepository
	current    providers.CurrentLocationProvider
	eventBus   providers.EventBus
	metrics    *observability.Metrics
	options    []hierarchy.Option
}

// NewLocationService creates a new location service. searchRepo, current and eventBus may be nil.
func NewLocationService(
	repo repositories.LocationRepository,
	searchRepo repositories.LocationSearchRepository,
	current providers.CurrentLocationProvider,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	options ...hierarchy.Option,
) *LocationService {
	return &LocationService{
		repo:       repo,
		searchRepo: searchRepo,
		current:    current,
		eventBus:   eventBus,
		metrics:    metrics,
		options:    options,
	}
}

// query loads the collection once and wraps it for a single operation
func (s *LocationService) query(ctx context.Context, operation string) (*hierarchy.Query, error) {
	locations, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	observability.RecordHierarchyQuery(ctx, s.metrics, operation, len(locations))
	return hierarchy.New(locations, s.options...), nil
}

func (s *LocationService) run(ctx context.Context, operation string, fn func(ctx context.Context, q *hierarchy.Query) error) error {
	ctx, span := observability.StartSpan(ctx, "LocationService."+operation)
	defer span.End()

	q, err := s.query(ctx, operation)
	if err == nil {
		err = fn(ctx, q)
	}
	if err != nil {
		observability.RecordError(span, err)
		if !apperrors.IsNotFound(err) {
			observability.LoggerFromContext(ctx).Error().Err(err).Str("operation", operation).Msg("location query failed")
		}
	}
	return err
}

// List returns the whole collection
func (s *LocationService) List(ctx context.Context) ([]entities.Location, error) {
	var result []entities.Location
	err := s.run(ctx, "List", func(ctx context.Context, q *hierarchy.Query) error {
		result = q.All()
		return nil
	})
	return result, err
}

// GetByID returns the location whose ID or UUID is id
func (s *LocationService) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	var result *entities.Location
	err := s.run(ctx, "GetByID", func(ctx context.Context, q *hierarchy.Query) error {
		location, ok := q.FindByID(id)
		if !ok {
			return notFound(id)
		}
		result = location
		return nil
	})
	return result, err
}

// Roots returns every location without a parent
func (s *LocationService) Roots(ctx context.Context) ([]entities.Location, error) {
	return s.filter(ctx, "Roots", (*hierarchy.Query).RootLocations)
}

// Parent returns the first root location
func (s *LocationService) Parent(ctx context.Context) (*entities.Location, error) {
	var result *entities.Location
	err := s.run(ctx, "Parent", func(ctx context.Context, q *hierarchy.Query) error {
		location, ok := q.ParentLocation()
		if !ok {
			return apperrors.NewNotFoundError("no root location exists")
		}
		result = location
		return nil
	})
	return result, err
}

// Stores returns every store location
func (s *LocationService) Stores(ctx context.Context) ([]entities.Location, error) {
	return s.filter(ctx, "Stores", (*hierarchy.Query).StoreLocations)
}

// LoginLocations returns every non-root location users may log in to
func (s *LocationService) LoginLocations(ctx context.Context) ([]entities.Location, error) {
	return s.filter(ctx, "LoginLocations", (*hierarchy.Query).LoginLocations)
}

// TreatmentLocations returns every treatment room with its billing concept
func (s *LocationService) TreatmentLocations(ctx context.Context) ([]entities.TreatmentLocation, error) {
	var result []entities.TreatmentLocation
	err := s.run(ctx, "TreatmentLocations", func(ctx context.Context, q *hierarchy.Query) error {
		result = q.TreatmentLocations()
		return nil
	})
	return result, err
}

// ByTag returns locations carrying a tag with exactly this display label
func (s *LocationService) ByTag(ctx context.Context, display string) ([]entities.Location, error) {
	return s.filter(ctx, "ByTag", func(q *hierarchy.Query) []entities.Location {
		return q.FilterByTag(display)
	})
}

// ByTagName returns locations carrying a tag with exactly this name
func (s *LocationService) ByTagName(ctx context.Context, name string) ([]entities.Location, error) {
	return s.filter(ctx, "ByTagName", func(q *hierarchy.Query) []entities.Location {
		return q.FilterByTagName(name)
	})
}

// ByKind returns locations classified as kind, matched case-insensitively
func (s *LocationService) ByKind(ctx context.Context, kind string) ([]entities.Location, error) {
	tagKind, ok := entities.ParseTagKind(kind)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown location kind %q", kind))
	}
	return s.filter(ctx, "ByKind", func(q *hierarchy.Query) []entities.Location {
		return q.FilterByKind(tagKind)
	})
}

func (s *LocationService) filter(ctx context.Context, operation string, fn func(*hierarchy.Query) []entities.Location) ([]entities.Location, error) {
	var result []entities.Location
	err := s.run(ctx, operation, func(ctx context.Context, q *hierarchy.Query) error {
		result = fn(q)
		return nil
	})
	return result, err
}

// Descendants returns id followed by the key of every location below it. Unknown ids yield an empty list.
func (s *LocationService) Descendants(ctx context.Context, id string) ([]string, error) {
	var result []string
	err := s.run(ctx, "Descendants", func(ctx context.Context, q *hierarchy.Query) (err error) {
		result, err = q.AllDescendantIDsUnderLocation(id)
		return err
	})
	return result, err
}

// CabinetIDs returns the keys of every cabinet below id, then id itself
func (s *LocationService) CabinetIDs(ctx context.Context, id string) ([]string, error) {
	var result []string
	err := s.run(ctx, "CabinetIDs", func(ctx context.Context, q *hierarchy.Query) (err error) {
		result, err = q.AllCabinetIDsUnderLocation(id)
		return err
	})
	return result, err
}

// WardTree returns the member tree rooted at id
func (s *LocationService) WardTree(ctx context.Context, id string) (*entities.LocationMember, error) {
	var result *entities.LocationMember
	err := s.run(ctx, "WardTree", func(ctx context.Context, q *hierarchy.Query) error {
		tree, ok, err := q.WardTree(id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(id)
		}
		result = tree
		return nil
	})
	return result, err
}

// GroupBeds groups the beds below id by id's direct children
func (s *LocationService) GroupBeds(ctx context.Context, id string) (*hierarchy.UnitGrouping, error) {
	return s.GroupUnits(ctx, id, hierarchy.UnitKindBed)
}

// GroupCabinets groups the cabinets below id by id's direct children
func (s *LocationService) GroupCabinets(ctx context.Context, id string) (*hierarchy.UnitGrouping, error) {
	return s.GroupUnits(ctx, id, hierarchy.UnitKindCabinet)
}

// GroupUnits groups the units of kind below id by id's direct children
func (s *LocationService) GroupUnits(ctx context.Context, id string, kind hierarchy.UnitKind) (*hierarchy.UnitGrouping, error) {
	var result *hierarchy.UnitGrouping
	err := s.run(ctx, "GroupUnits", func(ctx context.Context, q *hierarchy.Query) error {
		grouping, ok, err := q.GroupUnitsUnderChildren(id, kind)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(id)
		}
		result = grouping
		return nil
	})
	return result, err
}

// Search finds locations by free text using the search engine if available,
// falling back to matching name, display and description in the loaded collection
func (s *LocationService) Search(ctx context.Context, params repositories.LocationSearchParams) ([]entities.Location, error) {
	var result []entities.Location
	err := s.run(ctx, "Search", func(ctx context.Context, q *hierarchy.Query) error {
		if s.searchRepo == nil {
			result = searchCollection(q, params)
			return nil
		}

		ids, err := s.searchRepo.Search(ctx, params)
		if err != nil {
			return apperrors.NewExternalError("location search failed", err)
		}

		result = make([]entities.Location, 0, len(ids))
		for _, id := range ids {
			if location, ok := q.FindByID(id); ok {
				result = append(result, *location)
			}
		}
		return nil
	})
	return result, err
}

func searchCollection(q *hierarchy.Query, params repositories.LocationSearchParams) []entities.Location {
	needle := strings.ToLower(strings.TrimSpace(params.Query))

	matches := []entities.Location{}
	for _, location := range q.All() {
		if params.TagDisplay != "" && !location.HasTagDisplay(params.TagDisplay) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(location.Name), needle) &&
			!strings.Contains(strings.ToLower(location.Display), needle) &&
			!strings.Contains(strings.ToLower(location.Description), needle) {
			continue
		}
		matches = append(matches, location)
	}

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return []entities.Location{}
	}
	matches = matches[offset:]
	if params.Limit > 0 && params.Limit < len(matches) {
		matches = matches[:params.Limit]
	}
	return matches
}

// CurrentLocation resolves the user's working location: selectedID when given,
// otherwise the location the user last selected
func (s *LocationService) CurrentLocation(ctx context.Context, userID, selectedID string) (*entities.CurrentLocationView, error) {
	ctx, span := observability.StartSpan(ctx, "LocationService.CurrentLocation")
	defer span.End()

	if selectedID != "" {
		location, err := s.GetByID(ctx, selectedID)
		if err != nil {
			return nil, err
		}
		return entities.NewCurrentLocationView(location), nil
	}

	if s.current == nil {
		return nil, apperrors.NewNotFoundError("no current location selected")
	}

	location, err := s.current.Get(ctx, userID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if location == nil {
		return nil, apperrors.NewNotFoundError("no current location selected")
	}
	return entities.NewCurrentLocationView(location), nil
}

// SetCurrentLocation remembers id as the user's working location
func (s *LocationService) SetCurrentLocation(ctx context.Context, userID, id string) (*entities.CurrentLocationView, error) {
	ctx, span := observability.StartSpan(ctx, "LocationService.SetCurrentLocation")
	defer span.End()

	if s.current == nil {
		return nil, apperrors.NewValidationError("current location storage is not configured")
	}

	location, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.current.Set(ctx, userID, location); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("user_id", userID).Str("location_id", location.Key()).Msg("current location selected")
	return entities.NewCurrentLocationView(location), nil
}

// ClearCurrentLocation forgets the user's working location
func (s *LocationService) ClearCurrentLocation(ctx context.Context, userID string) error {
	if s.current == nil {
		return nil
	}
	return s.current.Clear(ctx, userID)
}

// Upsert validates and stores a location, indexes it and announces the change
func (s *LocationService) Upsert(ctx context.Context, location *entities.Location) (*entities.Location, error) {
	ctx, span := observability.StartSpan(ctx, "LocationService.Upsert")
	defer span.End()

	if strings.TrimSpace(location.Name) == "" {
		return nil, apperrors.NewValidationError("location name is required")
	}
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	if location.UUID == "" {
		stored, err := s.storedUUID(ctx, location.ID)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		location.UUID = stored
	}
	observability.SetSpanAttributes(span, attribute.String("location.id", location.ID))

	if !location.IsRoot() {
		if err := s.validateParent(ctx, location); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.repo.Upsert(ctx, location); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Index(ctx, location); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("location_id", location.ID).Msg("failed to index location")
		}
	}
	s.publish(ctx, location.ID, entities.LocationEventTypeUpserted)

	return s.repo.GetByID(ctx, location.ID)
}

// storedUUID returns the UUID already recorded for id, or id itself for a new location
func (s *LocationService) storedUUID(ctx context.Context, id string) (string, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return id, nil
		}
		return "", err
	}
	if existing.ID != id || existing.UUID == "" {
		return id, nil
	}
	return existing.UUID, nil
}

// validateParent rejects unknown parents and parents that would close a cycle
func (s *LocationService) validateParent(ctx context.Context, location *entities.Location) error {
	q, err := s.query(ctx, "Upsert")
	if err != nil {
		return err
	}

	parent, ok := q.FindByID(location.ParentLocation.UUID)
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("parent location %s does not exist", location.ParentLocation.UUID))
	}
	if parent.ID == location.ID || parent.UUID == location.UUID {
		return apperrors.NewValidationError("a location cannot be its own parent")
	}

	descendants, err := q.AllDescendantIDsUnderLocation(location.ID)
	if err != nil {
		return err
	}
	for _, id := range descendants {
		if id == parent.ID || id == parent.UUID {
			return apperrors.NewConflictError(fmt.Sprintf("moving %s under %s would create a cycle", location.ID, parent.Key()))
		}
	}

	location.ParentLocation.UUID = parent.Key()
	location.ParentLocation.Display = parent.Display
	return nil
}

// Delete removes a leaf location
func (s *LocationService) Delete(ctx context.Context, id string) error {
	ctx, span := observability.StartSpan(ctx, "LocationService.Delete")
	defer span.End()

	location, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if len(location.ChildLocations) > 0 {
		return apperrors.NewConflictError(fmt.Sprintf("location %s still has %d child locations", id, len(location.ChildLocations)))
	}

	if err := s.repo.Delete(ctx, location.ID); err != nil {
		observability.RecordError(span, err)
		return err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, location.Key()); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("location_id", location.ID).Msg("failed to remove location from index")
		}
	}
	s.publish(ctx, location.ID, entities.LocationEventTypeDeleted)
	return nil
}

func (s *LocationService) publish(ctx context.Context, locationID string, eventType entities.LocationEventType) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewLocationEvent(locationID, eventType)
	if err := s.eventBus.Publish(ctx, providers.EventChannelLocationUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("location_id", locationID).Msg("failed to publish location event")
	}
}

func notFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
}
