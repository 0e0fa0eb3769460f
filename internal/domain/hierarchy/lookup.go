package hierarchy

import (
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// All returns a copy of every location in collection order
func (q *Query) All() []entities.Location {
	return q.filter(func(*entities.Location) bool { return true })
}

// FindByID returns the first location whose ID or UUID equals id
func (q *Query) FindByID(id string) (*entities.Location, bool) {
	if id == "" {
		return nil, false
	}
	location, ok := q.index.Get(id)
	if !ok {
		return nil, false
	}
	clone := location.Clone()
	return &clone, true
}

// FilterByTag returns locations with a tag whose display label is exactly tagDisplay
func (q *Query) FilterByTag(tagDisplay string) []entities.Location {
	return q.filter(func(l *entities.Location) bool { return l.HasTagDisplay(tagDisplay) })
}

// FilterByTagName returns locations with a tag whose name is exactly tagName
func (q *Query) FilterByTagName(tagName string) []entities.Location {
	return q.filter(func(l *entities.Location) bool { return l.HasTagName(tagName) })
}

// FilterByKind returns locations classified as kind
func (q *Query) FilterByKind(kind entities.TagKind) []entities.Location {
	return q.filter(func(l *entities.Location) bool { return l.HasTagKind(kind) })
}

// RootLocations returns every location without a parent
func (q *Query) RootLocations() []entities.Location {
	return q.filter(func(l *entities.Location) bool { return l.IsRoot() })
}

// ParentLocation returns the first root location
func (q *Query) ParentLocation() (*entities.Location, bool) {
	for i := range q.locations {
		if q.locations[i].IsRoot() {
			clone := q.locations[i].Clone()
			return &clone, true
		}
	}
	return nil, false
}

// StoreLocations returns locations tagged as stores
func (q *Query) StoreLocations() []entities.Location {
	return q.FilterByKind(entities.TagKindStore)
}

// LoginLocations returns non-root locations users can log in to
func (q *Query) LoginLocations() []entities.Location {
	return q.filter(func(l *entities.Location) bool { return l.IsLoginLocation() })
}

// TreatmentLocations returns treatment rooms with their billing concept resolved
func (q *Query) TreatmentLocations() []entities.TreatmentLocation {
	result := []entities.TreatmentLocation{}
	for i := range q.locations {
		location := &q.locations[i]
		if !location.IsTreatmentRoom() {
			continue
		}
		treatment := entities.TreatmentLocation{Location: location.Clone()}
		if concept, ok := location.AttributeValue(entities.AttributeKindBillingConcept); ok {
			treatment.BillingConcept = &concept
		}
		result = append(result, treatment)
	}
	return result
}

func (q *Query) filter(keep func(*entities.Location) bool) []entities.Location {
	result := []entities.Location{}
	for i := range q.locations {
		if keep(&q.locations[i]) {
			result = append(result, q.locations[i].Clone())
		}
	}
	return result
}

// FindByID returns the first location in locations whose ID or UUID equals id
func FindByID(locations []entities.Location, id string) (*entities.Location, bool) {
	return New(locations).FindByID(id)
}

// FilterByTag returns locations with a tag whose display label is exactly tagDisplay
func FilterByTag(locations []entities.Location, tagDisplay string) []entities.Location {
	return New(locations).FilterByTag(tagDisplay)
}

// FilterByTagName returns locations with a tag whose name is exactly tagName
func FilterByTagName(locations []entities.Location, tagName string) []entities.Location {
	return New(locations).FilterByTagName(tagName)
}

// RootLocations returns every location without a parent
func RootLocations(locations []entities.Location) []entities.Location {
	return New(locations).RootLocations()
}

// ParentLocation returns the first root location
func ParentLocation(locations []entities.Location) (*entities.Location, bool) {
	return New(locations).ParentLocation()
}
