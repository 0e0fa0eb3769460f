package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

// DefaultPatientsPerBed is used when a location carries no usable "Patients per bed" attribute
const DefaultPatientsPerBed = 1

// LocationRef is a weak reference to another location, resolved by UUID
type LocationRef struct {
	UUID    string `json:"uuid"`
	Display string `json:"display,omitempty"`
}

// Tag is a classification label attached to a location
type Tag struct {
	UUID    string `json:"uuid,omitempty" db:"uuid"`
	Name    string `json:"name" db:"name"`
	Display string `json:"display" db:"display"`
}

// AttributeType names the kind of metadata an attribute carries
type AttributeType struct {
	UUID    string `json:"uuid,omitempty"`
	Display string `json:"display"`
}

// Attribute is a metadata key/value pair on a location
type Attribute struct {
	UUID          string        `json:"uuid,omitempty"`
	AttributeType AttributeType `json:"attributeType"`
	Value         string        `json:"value"`
}

// Location represents a node in a facility hierarchy (building, ward, room, bed, cabinet, store)
type Location struct {
	ID                        string        `json:"id" db:"id"`
	UUID                      string        `json:"uuid" db:"uuid"`
	Name                      string        `json:"name" db:"name"`
	Display                   string        `json:"display,omitempty" db:"display"`
	Description               string        `json:"description,omitempty" db:"description"`
	ParentLocation            *LocationRef  `json:"parentLocation"`
	ChildLocations            []LocationRef `json:"childLocations"`
	Tags                      []Tag         `json:"tags"`
	Attributes                []Attribute   `json:"attributes"`
	AreChildLocationsBeds     bool          `json:"areChildLocationsBeds" db:"are_child_locations_beds"`
	AreChildLocationsCabinets bool          `json:"areChildLocationsCabinets" db:"are_child_locations_cabinets"`
	CreatedAt                 time.Time     `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt                 time.Time     `json:"updated_at,omitempty" db:"updated_at"`
}

// Key returns the identifier the hierarchy is linked by: ID, or UUID when ID is unset
func (l *Location) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return l.UUID
}

// Ref returns a weak reference to this location
func (l *Location) Ref() LocationRef {
	return LocationRef{UUID: l.Key(), Display: l.Display}
}

// IsRoot reports whether the location has no parent
func (l *Location) IsRoot() bool {
	return l.ParentLocation == nil || l.ParentLocation.UUID == ""
}

// HasTagDisplay reports whether any tag has exactly the given display label
func (l *Location) HasTagDisplay(display string) bool {
	for _, tag := range l.Tags {
		if tag.Display == display {
			return true
		}
	}
	return false
}

// HasTagName reports whether any tag has exactly the given name
func (l *Location) HasTagName(name string) bool {
	for _, tag := range l.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// HasTagKind reports whether any tag classifies the location as kind
func (l *Location) HasTagKind(kind TagKind) bool {
	for _, tag := range l.Tags {
		if kind.Matches(tag) {
			return true
		}
	}
	return false
}

func (l *Location) IsBed() bool           { return l.HasTagKind(TagKindBedLocation) }
func (l *Location) IsCabinet() bool       { return l.HasTagKind(TagKindCabinetLocation) }
func (l *Location) IsStore() bool         { return l.HasTagKind(TagKindStore) }
func (l *Location) IsMainStore() bool     { return l.HasTagKind(TagKindMainStore) }
func (l *Location) IsTreatmentRoom() bool { return l.HasTagKind(TagKindTreatmentRoom) }

// IsMinorProcedureLocation reports whether minor procedures are performed here
func (l *Location) IsMinorProcedureLocation() bool {
	return l.HasTagKind(TagKindMinorProcedureLocation)
}

// IsLoginLocation reports whether users may log in to this location. Roots never qualify.
func (l *Location) IsLoginLocation() bool {
	return !l.IsRoot() && l.HasTagKind(TagKindLoginLocation)
}

// AttributeValue returns the value of the first attribute of the given kind
func (l *Location) AttributeValue(kind AttributeKind) (string, bool) {
	for _, attribute := range l.Attributes {
		if kind.Matches(attribute) {
			return attribute.Value, true
		}
	}
	return "", false
}

// AttributeValues returns the values of every attribute of the given kind, in order
func (l *Location) AttributeValues(kind AttributeKind) []string {
	values := []string{}
	for _, attribute := range l.Attributes {
		if kind.Matches(attribute) {
			values = append(values, attribute.Value)
		}
	}
	return values
}

// ParsePatientsPerBed parses the "Patients per bed" attribute. A missing attribute
// yields DefaultPatientsPerBed; a non-numeric one yields a MALFORMED_ATTRIBUTE error.
func (l *Location) ParsePatientsPerBed() (int, error) {
	value, ok := l.AttributeValue(AttributeKindPatientsPerBed)
	if !ok {
		return DefaultPatientsPerBed, nil
	}

	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, apperrors.NewMalformedAttributeError(
			fmt.Sprintf("location %s has non-numeric %q value %q", l.Key(), AttributeKindPatientsPerBed.Label(), value),
			err,
		)
	}
	return count, nil
}

// PatientsPerBed is the lenient form of ParsePatientsPerBed: unparsable values count as one patient
func (l *Location) PatientsPerBed() int {
	count, err := l.ParsePatientsPerBed()
	if err != nil {
		return DefaultPatientsPerBed
	}
	return count
}

// Clone returns a deep copy so derived views never alias the source collection
func (l *Location) Clone() Location {
	clone := *l
	if l.ParentLocation != nil {
		parent := *l.ParentLocation
		clone.ParentLocation = &parent
	}
	if l.ChildLocations != nil {
		clone.ChildLocations = make([]LocationRef, len(l.ChildLocations))
		copy(clone.ChildLocations, l.ChildLocations)
	}
	if l.Tags != nil {
		clone.Tags = make([]Tag, len(l.Tags))
		copy(clone.Tags, l.Tags)
	}
	if l.Attributes != nil {
		clone.Attributes = make([]Attribute, len(l.Attributes))
		copy(clone.Attributes, l.Attributes)
	}
	return clone
}

// LocationMember is a location materialized together with its resolved descendants
type LocationMember struct {
	Location
	ChildMembers   []*LocationMember `json:"childMembers"`
	IsBed          bool              `json:"isBed"`
	PatientsPerBed int               `json:"patientsPerBed"`
}

// TreatmentLocation is a treatment room together with the concept it is billed under
type TreatmentLocation struct {
	Location
	BillingConcept *string `json:"billingConcept"`
}

// CurrentLocationView is the user's working location with the flags the UI dispatches on
type CurrentLocationView struct {
	Location
	MinorProcedureLocation bool     `json:"minorProcedureLocation"`
	IsMainStore            bool     `json:"isMainStore"`
	Forms                  []string `json:"forms"`
}

// NewCurrentLocationView derives the view for a resolved location. The view's ID is the location's UUID.
func NewCurrentLocationView(location *Location) *CurrentLocationView {
	view := &CurrentLocationView{
		Location:               location.Clone(),
		MinorProcedureLocation: location.IsMinorProcedureLocation(),
		IsMainStore:            location.IsMainStore(),
		Forms:                  location.AttributeValues(AttributeKindForms),
	}
	if location.UUID != "" {
		view.ID = location.UUID
	}
	return view
}
