package hierarchy

import (
	"fmt"

	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

// BuildMemberTree materializes root and every location reachable through its
// child references. Dangling references are skipped. A reference back to a
// location already on the current path, recursion past the configured depth,
// or a walk visiting more nodes than the collection can hold as a forest
// fails with CYCLE_DETECTED.
func (q *Query) BuildMemberTree(root *entities.Location) (*entities.LocationMember, error) {
	if root == nil {
		return nil, nil
	}
	return q.buildMember(root, q.newWalk(), 0)
}

func (q *Query) buildMember(location *entities.Location, w *walk, depth int) (*entities.LocationMember, error) {
	key := location.Key()
	if err := w.enter(key, depth); err != nil {
		return nil, err
	}
	defer w.leave(key)

	patientsPerBed, err := q.patientsPerBed(location)
	if err != nil {
		return nil, err
	}

	member := &entities.LocationMember{
		Location:       location.Clone(),
		ChildMembers:   []*entities.LocationMember{},
		IsBed:          location.IsBed(),
		PatientsPerBed: patientsPerBed,
	}

	for _, ref := range location.ChildLocations {
		child, ok := q.index.Get(ref.UUID)
		if !ok {
			continue
		}
		childMember, err := q.buildMember(child, w, depth+1)
		if err != nil {
			return nil, err
		}
		member.ChildMembers = append(member.ChildMembers, childMember)
	}

	return member, nil
}

// walk tracks one depth-first traversal. A forest visits each location at
// most once, so budget only runs out when children are shared between parents.
type walk struct {
	path     map[string]struct{}
	maxDepth int
	visits   int
	budget   int
}

func (q *Query) newWalk() *walk {
	budget := q.index.Len() * q.maxDepth
	if budget < 1 {
		budget = 1
	}
	return &walk{
		path:     make(map[string]struct{}),
		maxDepth: q.maxDepth,
		budget:   budget,
	}
}

// enter pushes key onto the traversal path
func (w *walk) enter(key string, depth int) error {
	if _, onPath := w.path[key]; onPath {
		return apperrors.NewCycleDetectedError(fmt.Sprintf("location %s is its own ancestor", key))
	}
	if depth > w.maxDepth {
		return apperrors.NewCycleDetectedError(fmt.Sprintf("location hierarchy below %s exceeds depth %d", key, w.maxDepth))
	}
	w.visits++
	if w.visits > w.budget {
		return apperrors.NewCycleDetectedError(fmt.Sprintf("location hierarchy reaches %s more than %d times; locations are shared between parents", key, w.budget))
	}
	w.path[key] = struct{}{}
	return nil
}

func (w *walk) leave(key string) {
	delete(w.path, key)
}

func (q *Query) patientsPerBed(location *entities.Location) (int, error) {
	if q.strictAttributes {
		return location.ParsePatientsPerBed()
	}
	return location.PatientsPerBed(), nil
}

// Flatten lists tree and all its descendants in pre-order, without child members
func Flatten(tree *entities.LocationMember) []entities.Location {
	result := []entities.Location{}
	if tree == nil {
		return result
	}
	return flattenInto(result, tree)
}

func flattenInto(result []entities.Location, member *entities.LocationMember) []entities.Location {
	result = append(result, member.Location.Clone())
	for _, child := range member.ChildMembers {
		result = flattenInto(result, child)
	}
	return result
}

// BuildMemberTree materializes root against locations with default options
func BuildMemberTree(root *entities.Location, locations []entities.Location) (*entities.LocationMember, error) {
	return New(locations).BuildMemberTree(root)
}
