package vocab

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/types"
)

func setItem(setID uuid.UUID, conceptID int64) types.ConceptSetItem {
	return types.ConceptSetItem{
		ID:           uuid.New(),
		ConceptSetID: setID,
		ConceptID:    conceptID,
	}
}

func conceptIDs(items []types.ConceptSetItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ConceptID)
	}
	return ids
}

func TestOptimizeBottomUpSubstitutesCoveredAncestor(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(100, "Beta blockers", "Drug", "ATC", "ATC 4th"),
			standardConcept(101, "Metoprolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(102, "Atenolol", "Drug", "RxNorm", "Ingredient"),
		},
		ancestors: []types.ConceptAncestor{
			closureRow(100, 101, 1),
			closureRow(100, 102, 1),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	res, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{
		setItem(setID, 101),
		setItem(setID, 102),
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Status != OptimizeStatusOK || res.Strategy != StrategyBottomUp {
		t.Fatalf("expected ok/bottom_up, got %s/%s", res.Status, res.Strategy)
	}
	if res.RemovedCount != 2 || len(res.RemovedItems) != 2 {
		t.Fatalf("expected both children removed, got %d", res.RemovedCount)
	}
	if len(res.AddedItems) != 1 || res.AddedItems[0].ConceptID != 100 {
		t.Fatalf("expected ancestor 100 added, got %+v", res.AddedItems)
	}
	if !res.AddedItems[0].IncludeDescendants {
		t.Errorf("substituted ancestor must include descendants")
	}
	if res.AddedItems[0].ConceptSetID != setID {
		t.Errorf("substituted ancestor lost its concept set id")
	}
	if len(res.OptimizedItems) != 1 || res.OptimizedItems[0].ConceptID != 100 {
		t.Fatalf("expected optimized set {100}, got %v", conceptIDs(res.OptimizedItems))
	}
	if res.IterationLimitReached {
		t.Errorf("unexpected iteration limit flag")
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(100, "Beta blockers", "Drug", "ATC", "ATC 4th"),
			standardConcept(101, "Metoprolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(102, "Atenolol", "Drug", "RxNorm", "Ingredient"),
		},
		ancestors: []types.ConceptAncestor{
			closureRow(100, 101, 1),
			closureRow(100, 102, 1),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	first, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{
		setItem(setID, 101),
		setItem(setID, 102),
	})
	if err != nil {
		t.Fatalf("first Optimize: %v", err)
	}
	second, err := opt.Optimize(context.Background(), snap, first.OptimizedItems)
	if err != nil {
		t.Fatalf("second Optimize: %v", err)
	}
	if second.Strategy != StrategyNone {
		t.Fatalf("expected no-op on already-minimal set, got %s", second.Strategy)
	}
	if second.RemovedCount != 0 || len(second.AddedItems) != 0 {
		t.Fatalf("expected no changes, got removed=%d added=%d", second.RemovedCount, len(second.AddedItems))
	}
	if len(second.OptimizedItems) != len(first.OptimizedItems) {
		t.Fatalf("fixed point changed the set: %v", conceptIDs(second.OptimizedItems))
	}
}

func TestOptimizePartialCoverageIsNoOp(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(100, "Beta blockers", "Drug", "ATC", "ATC 4th"),
			standardConcept(101, "Metoprolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(102, "Atenolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(103, "Propranolol", "Drug", "RxNorm", "Ingredient"),
		},
		ancestors: []types.ConceptAncestor{
			closureRow(100, 101, 1),
			closureRow(100, 102, 1),
			closureRow(100, 103, 1),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	res, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{
		setItem(setID, 101),
		setItem(setID, 102),
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// 103 is a Standard, valid descendant outside the set, so 100 must
	// not be substituted in.
	if res.Strategy != StrategyNone || res.RemovedCount != 0 {
		t.Fatalf("expected no-op, got %s removed=%d", res.Strategy, res.RemovedCount)
	}
	if len(res.OptimizedItems) != 2 {
		t.Fatalf("expected input preserved, got %v", conceptIDs(res.OptimizedItems))
	}
}

func TestOptimizeTopDownDropsRedundantDescendants(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(100, "Beta blockers", "Drug", "ATC", "ATC 4th"),
			standardConcept(103, "Propranolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(104, "Sotalol", "Drug", "RxNorm", "Ingredient"),
		},
		ancestors: []types.ConceptAncestor{
			closureRow(100, 103, 1),
			closureRow(100, 104, 1),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	parent := setItem(setID, 100)
	parent.IncludeDescendants = true
	excludedChild := setItem(setID, 104)
	excludedChild.Excluded = true

	res, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{
		parent,
		setItem(setID, 103),
		excludedChild,
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Strategy != StrategyTopDown {
		t.Fatalf("expected top_down, got %s", res.Strategy)
	}
	if res.RemovedCount != 1 || res.RemovedItems[0].ConceptID != 103 {
		t.Fatalf("expected only 103 removed, got %v", conceptIDs(res.RemovedItems))
	}
	got := conceptIDs(res.OptimizedItems)
	if len(got) != 2 {
		t.Fatalf("expected parent and excluded carve-out to survive, got %v", got)
	}
	for _, item := range res.OptimizedItems {
		if item.ConceptID == 104 && !item.Excluded {
			t.Errorf("excluded carve-out lost its flag")
		}
		if item.ConceptID == 103 {
			t.Errorf("redundant descendant survived: %v", got)
		}
	}
}

func TestOptimizeIgnoresDanglingAncestors(t *testing.T) {
	// The closure names an ancestor with no concept row; it must never
	// be substituted into the set.
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(101, "Metoprolol", "Drug", "RxNorm", "Ingredient"),
			standardConcept(102, "Atenolol", "Drug", "RxNorm", "Ingredient"),
		},
		ancestors: []types.ConceptAncestor{
			closureRow(999, 101, 1),
			closureRow(999, 102, 1),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	res, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{
		setItem(setID, 101),
		setItem(setID, 102),
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Strategy != StrategyNone || res.RemovedCount != 0 || len(res.AddedItems) != 0 {
		t.Fatalf("expected no-op, got %s removed=%d added=%v", res.Strategy, res.RemovedCount, conceptIDs(res.AddedItems))
	}
	for _, item := range res.OptimizedItems {
		if item.ConceptID == 999 {
			t.Fatalf("dangling ancestor substituted into the set: %v", conceptIDs(res.OptimizedItems))
		}
	}
}

func TestOptimizeReportsDuplicateItemsAsRemoved(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(101, "Metoprolol", "Drug", "RxNorm", "Ingredient"),
		},
	})
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	first := setItem(setID, 101)
	dup := setItem(setID, 101)
	res, err := opt.Optimize(context.Background(), snap, []types.ConceptSetItem{first, dup})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.RemovedCount != 1 || len(res.RemovedItems) != 1 || res.RemovedItems[0].ID != dup.ID {
		t.Fatalf("expected the duplicate surfaced as removed, got %+v", res.RemovedItems)
	}
	if len(res.OptimizedItems) != 1 || res.OptimizedItems[0].ID != first.ID {
		t.Fatalf("expected the first occurrence kept, got %+v", res.OptimizedItems)
	}
}

func TestOptimizeWithoutSnapshotIsUnavailable(t *testing.T) {
	opt := NewOptimizer(testLogger(t))
	items := []types.ConceptSetItem{setItem(uuid.New(), 101)}

	res, err := opt.Optimize(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Status != OptimizeStatusUnavailable || res.Strategy != StrategyNone {
		t.Fatalf("expected unavailable/none, got %s/%s", res.Status, res.Strategy)
	}
	if len(res.OptimizedItems) != 1 || res.OptimizedItems[0].ConceptID != 101 {
		t.Fatalf("expected input unchanged, got %v", conceptIDs(res.OptimizedItems))
	}
}

// A chain where coverage permits exactly one substitution per pass: every
// A(k) has A(k-1) and S(k) as direct children, the bottom leaves are
// non-standard so they never count as residue, and every higher ancestor
// still has an uncollapsed Standard descendant outside the set until its
// turn comes. Sixteen passes would be required; the loop stops at ten.
func TestOptimizeBottomUpIterationCap(t *testing.T) {
	const chainLen = 16
	fx := fixture{
		concepts: []types.Concept{
			{ConceptID: 401, ConceptName: "Leaf one", DomainID: "Drug", VocabularyID: "RxNorm", ConceptClassID: "Ingredient"},
			{ConceptID: 402, ConceptName: "Leaf two", DomainID: "Drug", VocabularyID: "RxNorm", ConceptClassID: "Ingredient"},
		},
	}
	for k := 1; k <= chainLen; k++ {
		fx.concepts = append(fx.concepts,
			standardConcept(int64(200+k), fmt.Sprintf("Chain level %d", k), "Drug", "ATC", "ATC 3rd"))
		if k >= 2 {
			fx.concepts = append(fx.concepts,
				standardConcept(int64(300+k), fmt.Sprintf("Sibling %d", k), "Drug", "RxNorm", "Ingredient"))
		}
		// Transitive closure of A(k): every lower chain node, every
		// sibling up to level k, and both leaves.
		fx.ancestors = append(fx.ancestors,
			closureRow(int64(200+k), 401, k),
			closureRow(int64(200+k), 402, k))
		for j := 1; j < k; j++ {
			fx.ancestors = append(fx.ancestors, closureRow(int64(200+k), int64(200+j), k-j))
		}
		for j := 2; j <= k; j++ {
			fx.ancestors = append(fx.ancestors, closureRow(int64(200+k), int64(300+j), k-j+1))
		}
	}

	snap := newTestSnapshot(t, fx)
	opt := NewOptimizer(testLogger(t))
	setID := uuid.New()

	items := []types.ConceptSetItem{setItem(setID, 401), setItem(setID, 402)}
	for k := 2; k <= chainLen; k++ {
		items = append(items, setItem(setID, int64(300+k)))
	}

	res, err := opt.Optimize(context.Background(), snap, items)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Strategy != StrategyBottomUp {
		t.Fatalf("expected bottom_up, got %s", res.Strategy)
	}
	if !res.IterationLimitReached {
		t.Fatalf("expected the pass cap to trip")
	}
	// One substitution per pass: ten passes collapse levels 1..10,
	// leaving A(10) plus the six untouched higher siblings.
	if len(res.AddedItems) != maxOptimizerPasses {
		t.Fatalf("expected %d substitutions, got %d", maxOptimizerPasses, len(res.AddedItems))
	}
	got := map[int64]bool{}
	for _, item := range res.OptimizedItems {
		got[item.ConceptID] = true
	}
	if len(res.OptimizedItems) != 7 || !got[210] {
		t.Fatalf("expected {A10, S11..S16}, got %v", conceptIDs(res.OptimizedItems))
	}
	for k := 11; k <= chainLen; k++ {
		if !got[int64(300+k)] {
			t.Fatalf("sibling %d missing from %v", 300+k, conceptIDs(res.OptimizedItems))
		}
	}
}
