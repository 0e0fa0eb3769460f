package hierarchy

import (
	"strings"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// UnitKind selects the terminal units a ward is grouped by
type UnitKind int

const (
	UnitKindBed UnitKind = iota + 1
	UnitKindCabinet
)

func (k UnitKind) String() string {
	switch k {
	case UnitKindBed:
		return "bed"
	case UnitKindCabinet:
		return "cabinet"
	default:
		return "unknown"
	}
}

// ParseUnitKind resolves "bed"/"beds" and "cabinet"/"cabinets"
func ParseUnitKind(value string) (UnitKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "bed", "beds":
		return UnitKindBed, true
	case "cabinet", "cabinets":
		return UnitKindCabinet, true
	default:
		return 0, false
	}
}

// Matches reports whether location is a terminal unit of this kind
func (k UnitKind) Matches(location *entities.Location) bool {
	switch k {
	case UnitKindBed:
		return location.IsBed()
	case UnitKindCabinet:
		return location.IsCabinet()
	default:
		return false
	}
}

// childrenAreUnits reports whether location is flagged as holding units of this kind directly
func (k UnitKind) childrenAreUnits(location *entities.Location) bool {
	switch k {
	case UnitKindBed:
		return location.AreChildLocationsBeds
	case UnitKindCabinet:
		return location.AreChildLocationsCabinets
	default:
		return false
	}
}

// UnitGroup is a direct child of a grouped location with the units found beneath it.
// Location.ChildLocations is rewritten to reference exactly Units.
type UnitGroup struct {
	Location entities.Location   `json:"location"`
	Units    []entities.Location `json:"units"`
}

// UnitGrouping is a location whose units are grouped under its direct children
type UnitGrouping struct {
	Kind     string            `json:"kind"`
	Location entities.Location `json:"location"`

	// Direct is set when the location's own children are the units; Groups is then empty.
	Direct bool        `json:"direct"`
	Groups []UnitGroup `json:"groups"`
}

// CollectUnits returns every unit of kind below rootID in depth-first pre-order.
// Recursion stops at a unit. Unknown roots yield an empty result.
func (q *Query) CollectUnits(rootID string, kind UnitKind) ([]entities.Location, error) {
	root, ok := q.index.Get(rootID)
	if !ok {
		return []entities.Location{}, nil
	}

	collector := &unitCollector{
		query: q,
		kind:  kind,
		trail: q.newWalk(),
		seen:  make(map[string]struct{}),
		units: []entities.Location{},
	}
	if err := collector.visit(root, 0); err != nil {
		return nil, err
	}
	return collector.units, nil
}

type unitCollector struct {
	query *Query
	kind  UnitKind
	trail *walk
	seen  map[string]struct{}
	units []entities.Location
}

func (c *unitCollector) visit(location *entities.Location, depth int) error {
	key := location.Key()
	if err := c.trail.enter(key, depth); err != nil {
		return err
	}
	defer c.trail.leave(key)

	for _, ref := range location.ChildLocations {
		child, ok := c.query.index.Get(ref.UUID)
		if !ok {
			continue
		}
		if c.kind.Matches(child) {
			if _, dup := c.seen[child.Key()]; !dup {
				c.seen[child.Key()] = struct{}{}
				c.units = append(c.units, child.Clone())
			}
			continue
		}
		if err := c.visit(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// GroupUnitsUnderChildren groups the units of kind below rootID by the root's direct children.
// When the root is flagged as holding such units directly it is returned unchanged.
func (q *Query) GroupUnitsUnderChildren(rootID string, kind UnitKind) (*UnitGrouping, bool, error) {
	root, ok := q.index.Get(rootID)
	if !ok {
		return nil, false, nil
	}

	grouping := &UnitGrouping{
		Kind:     kind.String(),
		Location: root.Clone(),
		Groups:   []UnitGroup{},
	}
	if kind.childrenAreUnits(root) {
		grouping.Direct = true
		return grouping, true, nil
	}

	grouping.Location.ChildLocations = []entities.LocationRef{}
	for _, ref := range root.ChildLocations {
		child, ok := q.index.Get(ref.UUID)
		if !ok {
			continue
		}

		units, err := q.CollectUnits(child.Key(), kind)
		if err != nil {
			return nil, false, err
		}

		group := UnitGroup{Location: child.Clone(), Units: units}
		group.Location.ChildLocations = make([]entities.LocationRef, 0, len(units))
		for i := range units {
			group.Location.ChildLocations = append(group.Location.ChildLocations, units[i].Ref())
		}

		grouping.Location.ChildLocations = append(grouping.Location.ChildLocations, ref)
		grouping.Groups = append(grouping.Groups, group)
	}

	return grouping, true, nil
}

// GroupUnitsUnderChildren is the collection-level form of Query.GroupUnitsUnderChildren
func GroupUnitsUnderChildren(locations []entities.Location, rootID string, kind UnitKind) (*UnitGrouping, bool, error) {
	return New(locations).GroupUnitsUnderChildren(rootID, kind)
}
