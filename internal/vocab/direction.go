package vocab

import (
	"context"

	"github.com/phenolab/termhub-backend/internal/types"
)

// Direction of a hierarchical relationship kind: does an edge
// (source, target, kind) mean "source is the child of target"?
//
// The curated table below answers that for the kinds we know; kinds not
// listed fall back to comparing the identifier against its declared
// reverse lexicographically, which matches the convention that the
// child-side identifier sorts first (e.g. "Is a" < "Subsumes").

var childToParentKinds = map[string]bool{
	"Is a":             true,
	"RxNorm is a":      true,
	"Is descendant of": true,
}

var parentToChildKinds = map[string]bool{
	"Subsumes":            true,
	"RxNorm inverse is a": true,
	"Is ancestor of":      true,
}

// ChildReferencesParent reports whether an edge of the given kind points
// from child to parent.
func ChildReferencesParent(relationshipID, reverseRelationshipID string) bool {
	if childToParentKinds[relationshipID] {
		return true
	}
	if parentToChildKinds[relationshipID] {
		return false
	}
	return relationshipID < reverseRelationshipID
}

// directionResolver caches the ancestry-defining relationship kinds of a
// snapshot and answers direction questions for them.
type directionResolver struct {
	kinds map[string]types.RelationshipMeta
}

func newDirectionResolver(ctx context.Context, snap *Snapshot) (*directionResolver, error) {
	r := &directionResolver{kinds: map[string]types.RelationshipMeta{}}
	if snap == nil || !snap.HasRelationshipMeta() {
		return r, nil
	}
	var metas []types.RelationshipMeta
	err := snap.DB().WithContext(ctx).
		Where("defines_ancestry = ?", "1").
		Find(&metas).Error
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		r.kinds[m.RelationshipID] = m
	}
	return r, nil
}

func (r *directionResolver) kindIDs() []string {
	ids := make([]string, 0, len(r.kinds))
	for id := range r.kinds {
		ids = append(ids, id)
	}
	return ids
}

// childToParent reports whether edges of this ancestry-defining kind point
// child→parent. Unknown kinds default to child→parent, the common case.
func (r *directionResolver) childToParent(relationshipID string) bool {
	m, ok := r.kinds[relationshipID]
	if !ok {
		return true
	}
	return ChildReferencesParent(m.RelationshipID, m.ReverseRelationshipID)
}
