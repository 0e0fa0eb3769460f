package hierarchy

import (
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// AllDescendantIDsUnderLocation returns rootID followed by the key of every
// location below it, deduplicated in first-seen order. The root is listed
// once, under rootID, whichever of its identifiers that is. An unknown rootID
// yields an empty result.
func (q *Query) AllDescendantIDsUnderLocation(rootID string) ([]string, error) {
	root, ok := q.index.Get(rootID)
	if !ok {
		return []string{}, nil
	}

	tree, err := q.BuildMemberTree(root)
	if err != nil {
		return nil, err
	}

	ids := []string{rootID}
	for _, location := range Flatten(tree) {
		if sameLocation(&location, root) {
			continue
		}
		ids = append(ids, location.Key())
	}
	return uniq(ids), nil
}

// WardTree returns the member tree rooted at rootID
func (q *Query) WardTree(rootID string) (*entities.LocationMember, bool, error) {
	root, ok := q.index.Get(rootID)
	if !ok {
		return nil, false, nil
	}

	tree, err := q.BuildMemberTree(root)
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

// AllCabinetIDsUnderLocation returns the keys of every cabinet below rootID
// followed by rootID itself, deduplicated. rootID is always present and the
// root is never listed under its other identifier.
func (q *Query) AllCabinetIDsUnderLocation(rootID string) ([]string, error) {
	cabinets, err := q.CollectUnits(rootID, UnitKindCabinet)
	if err != nil {
		return nil, err
	}

	root, _ := q.index.Get(rootID)
	ids := make([]string, 0, len(cabinets)+1)
	for i := range cabinets {
		if sameLocation(&cabinets[i], root) {
			continue
		}
		ids = append(ids, cabinets[i].Key())
	}
	ids = append(ids, rootID)
	return uniq(ids), nil
}

// sameLocation reports whether a and b share an identifier
func sameLocation(a, b *entities.Location) bool {
	if a == nil || b == nil {
		return false
	}
	for _, key := range []string{a.ID, a.UUID} {
		if key != "" && (key == b.ID || key == b.UUID) {
			return true
		}
	}
	return false
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// AllDescendantIDsUnderLocation is the collection-level form of Query.AllDescendantIDsUnderLocation
func AllDescendantIDsUnderLocation(locations []entities.Location, rootID string) ([]string, error) {
	return New(locations).AllDescendantIDsUnderLocation(rootID)
}
