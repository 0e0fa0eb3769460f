package entities

import "strings"

// TagKind is the closed set of tags the hierarchy dispatches behaviour on.
// Matching against a Tag's display label ignores case and surrounding whitespace.
type TagKind string

const (
	TagKindStore                  TagKind = "Store"
	TagKindMainStore              TagKind = "Main Store"
	TagKindBedLocation            TagKind = "Bed Location"
	TagKindCabinetLocation        TagKind = "Cabinet Location"
	TagKindTreatmentRoom          TagKind = "Treatment Room"
	TagKindMinorProcedureLocation TagKind = "Minor Procedure Location"
	TagKindLoginLocation          TagKind = "Login Location"
)

// TagKinds lists every known tag kind
var TagKinds = []TagKind{
	TagKindStore,
	TagKindMainStore,
	TagKindBedLocation,
	TagKindCabinetLocation,
	TagKindTreatmentRoom,
	TagKindMinorProcedureLocation,
	TagKindLoginLocation,
}

// Label returns the canonical display label
func (k TagKind) Label() string {
	return string(k)
}

// Matches reports whether tag is of this kind
func (k TagKind) Matches(tag Tag) bool {
	return strings.EqualFold(strings.TrimSpace(tag.Display), string(k))
}

// ParseTagKind resolves a display label to its kind
func ParseTagKind(display string) (TagKind, bool) {
	for _, kind := range TagKinds {
		if kind.Matches(Tag{Display: display}) {
			return kind, true
		}
	}
	return "", false
}

// AttributeKind is the closed set of attribute types the hierarchy reads
type AttributeKind string

const (
	AttributeKindPatientsPerBed AttributeKind = "Patients per bed"
	AttributeKindBillingConcept AttributeKind = "Billing concept"
	AttributeKindForms          AttributeKind = "Forms"
)

// Label returns the canonical attribute type display label
func (k AttributeKind) Label() string {
	return string(k)
}

// Matches reports whether attribute is of this kind
func (k AttributeKind) Matches(attribute Attribute) bool {
	return strings.EqualFold(strings.TrimSpace(attribute.AttributeType.Display), string(k))
}
