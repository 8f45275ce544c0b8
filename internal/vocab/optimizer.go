package vocab

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

// maxOptimizerPasses caps the bottom-up fixed-point loop as a safety
// valve against cyclic or malformed closure data.
const maxOptimizerPasses = 10

type OptimizeStatus string

const (
	OptimizeStatusOK          OptimizeStatus = "ok"
	OptimizeStatusUnavailable OptimizeStatus = "unavailable"
)

type OptimizeStrategy string

const (
	StrategyBottomUp OptimizeStrategy = "bottom_up"
	StrategyTopDown  OptimizeStrategy = "top_down"
	StrategyNone     OptimizeStrategy = "none"
)

type OptimizeResult struct {
	Status                OptimizeStatus         `json:"status"`
	Strategy              OptimizeStrategy       `json:"strategy"`
	OptimizedItems        []types.ConceptSetItem `json:"optimized_items"`
	RemovedItems          []types.ConceptSetItem `json:"removed_items"`
	AddedItems            []types.ConceptSetItem `json:"added_items,omitempty"`
	RemovedCount          int                    `json:"removed_count"`
	IterationLimitReached bool                   `json:"iteration_limit_reached,omitempty"`
}

// Optimizer minimizes concept sets against a vocabulary snapshot. It is a
// pure function of (snapshot, items); no state survives between calls.
type Optimizer struct {
	log *logger.Logger
}

func NewOptimizer(baseLog *logger.Logger) *Optimizer {
	return &Optimizer{log: baseLog.With("component", "ConceptSetOptimizer")}
}

// Optimize tries the bottom-up ancestor substitution first and falls back
// to top-down redundant-descendant pruning only when bottom-up produced no
// change. Without a snapshot the input is returned unchanged with an
// explicit unavailable status.
func (o *Optimizer) Optimize(ctx context.Context, snap *Snapshot, items []types.ConceptSetItem) (*OptimizeResult, error) {
	if snap == nil {
		return &OptimizeResult{
			Status:         OptimizeStatusUnavailable,
			Strategy:       StrategyNone,
			OptimizedItems: items,
			RemovedItems:   []types.ConceptSetItem{},
		}, nil
	}

	result, err := o.bottomUp(ctx, snap, items)
	if err != nil {
		return nil, err
	}
	if len(result.RemovedItems) > 0 || len(result.AddedItems) > 0 {
		return result, nil
	}

	result, err = o.topDown(ctx, snap, items)
	if err != nil {
		return nil, err
	}
	if len(result.RemovedItems) > 0 {
		return result, nil
	}

	return &OptimizeResult{
		Status:         OptimizeStatusOK,
		Strategy:       StrategyNone,
		OptimizedItems: items,
		RemovedItems:   []types.ConceptSetItem{},
	}, nil
}

// substitution is one proposed replacement computed during a pass: the
// ancestor claims the listed child items.
type substitution struct {
	ancestorID int64
	children   []int64
}

func (o *Optimizer) bottomUp(ctx context.Context, snap *Snapshot, items []types.ConceptSetItem) (*OptimizeResult, error) {
	// Working set keyed by concept id; excluded items never participate
	// and pass through untouched. A duplicate non-excluded item for the
	// same concept is reported as removed, not silently collapsed.
	working := map[int64]types.ConceptSetItem{}
	var removed, added, excluded []types.ConceptSetItem
	var setID uuid.UUID
	for _, item := range items {
		if item.ConceptSetID != uuid.Nil {
			setID = item.ConceptSetID
		}
		if item.Excluded {
			excluded = append(excluded, item)
			continue
		}
		if _, ok := working[item.ConceptID]; ok {
			removed = append(removed, item)
			continue
		}
		working[item.ConceptID] = item
	}

	limitReached := false

	for pass := 1; ; pass++ {
		subs, err := o.findSubstitutions(ctx, snap, working)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			break
		}

		// All matches found in a pass are applied as one atomic batch
		// before the next pass reads a fresh view of the set.
		for _, sub := range subs {
			for _, childID := range sub.children {
				if item, ok := working[childID]; ok {
					removed = append(removed, item)
					delete(working, childID)
				}
			}
			ancestorItem := types.ConceptSetItem{
				ID:                 uuid.New(),
				ConceptSetID:       setID,
				ConceptID:          sub.ancestorID,
				Excluded:           false,
				IncludeDescendants: true,
				IncludeMapped:      false,
				CreatedAt:          time.Now().UTC(),
			}
			working[sub.ancestorID] = ancestorItem
			added = append(added, ancestorItem)
		}

		if pass >= maxOptimizerPasses {
			limitReached = true
			o.log.Warn("Optimizer pass limit reached, optimization may be incomplete", "passes", pass)
			break
		}
	}

	optimized := make([]types.ConceptSetItem, 0, len(working)+len(excluded))
	for _, item := range working {
		optimized = append(optimized, item)
	}
	optimized = append(optimized, excluded...)
	sortItems(optimized)

	if removed == nil {
		removed = []types.ConceptSetItem{}
	}
	return &OptimizeResult{
		Status:                OptimizeStatusOK,
		Strategy:              StrategyBottomUp,
		OptimizedItems:        optimized,
		RemovedItems:          removed,
		AddedItems:            added,
		RemovedCount:          len(removed),
		IterationLimitReached: limitReached,
	}, nil
}

// findSubstitutions computes the full-coverage ancestor substitutions for
// one pass against a snapshot of the working set. Candidates are processed
// by descending matched-child count; a later candidate is skipped when any
// of its children were already claimed earlier in the same pass.
func (o *Optimizer) findSubstitutions(ctx context.Context, snap *Snapshot, working map[int64]types.ConceptSetItem) ([]substitution, error) {
	if len(working) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(working))
	for id := range working {
		ids = append(ids, id)
	}

	// Joining to concept drops closure rows whose ancestor id has no
	// concept row; substituting a dangling id would corrupt the set.
	var pairs []types.ConceptAncestor
	err := snap.DB().WithContext(ctx).
		Table("concept_ancestor AS ca").
		Select("ca.ancestor_concept_id, ca.descendant_concept_id").
		Joins("JOIN concept c ON c.concept_id = ca.ancestor_concept_id").
		Where("ca.descendant_concept_id IN ?", ids).
		Where("ca.ancestor_concept_id <> ca.descendant_concept_id").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}

	matched := map[int64][]int64{}
	for _, p := range pairs {
		matched[p.AncestorConceptID] = append(matched[p.AncestorConceptID], p.DescendantConceptID)
	}

	var candidates []substitution
	for ancestorID, children := range matched {
		if len(children) < 2 {
			continue
		}
		// An ancestor already present in the set is not a substitution
		// candidate; its children are top-down territory.
		if _, ok := working[ancestorID]; ok {
			continue
		}
		covered, err := o.fullyCovered(ctx, snap, ancestorID, ids)
		if err != nil {
			return nil, err
		}
		if !covered {
			continue
		}
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		candidates = append(candidates, substitution{ancestorID: ancestorID, children: children})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].children) != len(candidates[j].children) {
			return len(candidates[i].children) > len(candidates[j].children)
		}
		return candidates[i].ancestorID < candidates[j].ancestorID
	})

	consumed := map[int64]bool{}
	var subs []substitution
	for _, cand := range candidates {
		overlap := false
		for _, childID := range cand.children {
			if consumed[childID] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}
		for _, childID := range cand.children {
			consumed[childID] = true
		}
		subs = append(subs, cand)
	}
	return subs, nil
}

// fullyCovered reports whether every Standard, valid descendant of the
// ancestor is already present in the set. Invalid and non-standard
// descendants do not count as residue, matching what descendant queries
// surface to curators.
func (o *Optimizer) fullyCovered(ctx context.Context, snap *Snapshot, ancestorID int64, setIDs []int64) (bool, error) {
	var outside int64
	err := snap.DB().WithContext(ctx).
		Table("concept_ancestor AS ca").
		Joins("JOIN concept c ON c.concept_id = ca.descendant_concept_id").
		Where("ca.ancestor_concept_id = ?", ancestorID).
		Where("ca.descendant_concept_id <> ca.ancestor_concept_id").
		Where("ca.descendant_concept_id NOT IN ?", setIDs).
		Where("c.standard_concept = ?", "S").
		Where("c.invalid_reason IS NULL OR c.invalid_reason = ''").
		Count(&outside).Error
	if err != nil {
		return false, err
	}
	return outside == 0, nil
}

func (o *Optimizer) topDown(ctx context.Context, snap *Snapshot, items []types.ConceptSetItem) (*OptimizeResult, error) {
	inSet := map[int64]bool{}
	for _, item := range items {
		inSet[item.ConceptID] = true
	}

	drop := map[int64]bool{}
	for _, item := range items {
		if item.Excluded || !item.IncludeDescendants {
			continue
		}
		ids := make([]int64, 0, len(inSet))
		for id := range inSet {
			if id != item.ConceptID {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		var pairs []types.ConceptAncestor
		err := snap.DB().WithContext(ctx).
			Where("ancestor_concept_id = ?", item.ConceptID).
			Where("descendant_concept_id IN ?", ids).
			Where("ancestor_concept_id <> descendant_concept_id").
			Find(&pairs).Error
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			drop[p.DescendantConceptID] = true
		}
	}

	var optimized, removed []types.ConceptSetItem
	for _, item := range items {
		// Excluded descendants are deliberate carve-outs and survive.
		if drop[item.ConceptID] && !item.Excluded {
			removed = append(removed, item)
			continue
		}
		optimized = append(optimized, item)
	}
	if removed == nil {
		removed = []types.ConceptSetItem{}
	}
	return &OptimizeResult{
		Status:         OptimizeStatusOK,
		Strategy:       StrategyTopDown,
		OptimizedItems: optimized,
		RemovedItems:   removed,
		RemovedCount:   len(removed),
	}, nil
}

func sortItems(items []types.ConceptSetItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ConceptID < items[j].ConceptID })
}
