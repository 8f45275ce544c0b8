package vocab

import (
	"context"
	"strings"
	"testing"

	"github.com/phenolab/termhub-backend/internal/types"
)

func hierarchyFixture() fixture {
	longName := strings.Repeat("x", 60)
	return fixture{
		concepts: []types.Concept{
			standardConcept(1, "Heart failure", "Condition", "SNOMED", "Clinical Finding"),
			standardConcept(2, "Acute heart failure", "Condition", "SNOMED", "Clinical Finding"),
			standardConcept(3, "Acute on chronic left-sided heart failure", "Condition", "SNOMED", "Clinical Finding"),
			standardConcept(10, "Heart disease", "Condition", "SNOMED", "Clinical Finding"),
			standardConcept(20, longName, "Condition", "SNOMED", "Clinical Finding"),
		},
		relationships: []types.ConceptRelationship{
			{ConceptID1: 1, ConceptID2: 10, RelationshipID: "Is a"},
			{ConceptID1: 10, ConceptID2: 20, RelationshipID: "Is a"},
			{ConceptID1: 2, ConceptID2: 1, RelationshipID: "Is a"},
		},
		ancestors: []types.ConceptAncestor{
			closureRow(10, 1, 1),
			closureRow(20, 1, 2),
			closureRow(20, 10, 1),
			closureRow(1, 2, 1),
			closureRow(1, 3, 3),
			// Dangling closure row: no such concept exists.
			closureRow(1, 777, 1),
		},
		relMetas: []types.RelationshipMeta{isaMeta()},
	}
}

func TestHierarchyGraphDepthBounds(t *testing.T) {
	snap := newTestSnapshot(t, hierarchyFixture())
	builder := NewGraphBuilder(testLogger(t))

	graph, err := builder.Build(context.Background(), snap, 1, 1, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if graph.Stats.TotalAncestors != 2 || graph.Stats.TotalDescendants != 3 {
		t.Fatalf("unexpected totals: %+v", graph.Stats)
	}
	if graph.Stats.DisplayedAncestors != 1 || graph.Stats.DisplayedDescendants != 1 {
		t.Fatalf("unexpected displayed counts: %+v", graph.Stats)
	}
	if len(graph.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %+v", graph.Nodes)
	}
	// Nodes come back sorted by level then id.
	if graph.Nodes[0].ID != 10 || graph.Nodes[0].Level != -1 || graph.Nodes[0].Category != NodeCategoryAncestor {
		t.Errorf("unexpected ancestor node: %+v", graph.Nodes[0])
	}
	if graph.Nodes[1].ID != 1 || graph.Nodes[1].Level != 0 || graph.Nodes[1].Category != NodeCategorySelected {
		t.Errorf("unexpected selected node: %+v", graph.Nodes[1])
	}
	if graph.Nodes[2].ID != 2 || graph.Nodes[2].Level != 1 || graph.Nodes[2].Category != NodeCategoryDescendant {
		t.Errorf("unexpected descendant node: %+v", graph.Nodes[2])
	}
}

func TestHierarchyGraphEdgesParentToChild(t *testing.T) {
	snap := newTestSnapshot(t, hierarchyFixture())
	builder := NewGraphBuilder(testLogger(t))

	graph, err := builder.Build(context.Background(), snap, 1, DefaultMaxLevels, DefaultMaxLevels)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The dangling closure row must not produce a node.
	for _, node := range graph.Nodes {
		if node.ID == 777 {
			t.Fatalf("node created for concept missing from the concept table")
		}
	}
	want := []HierarchyEdge{{From: 1, To: 2}, {From: 10, To: 1}, {From: 20, To: 10}}
	if len(graph.Edges) != len(want) {
		t.Fatalf("expected %d edges, got %+v", len(want), graph.Edges)
	}
	for i, e := range want {
		if graph.Edges[i] != e {
			t.Errorf("edge %d: expected %+v, got %+v", i, e, graph.Edges[i])
		}
	}
}

func TestHierarchyGraphTruncatesLongLabels(t *testing.T) {
	snap := newTestSnapshot(t, hierarchyFixture())
	builder := NewGraphBuilder(testLogger(t))

	graph, err := builder.Build(context.Background(), snap, 1, DefaultMaxLevels, DefaultMaxLevels)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var label string
	for _, node := range graph.Nodes {
		if node.ID == 20 {
			label = node.Label
		}
	}
	if label != strings.Repeat("x", maxNodeLabelLen)+"..." {
		t.Errorf("expected truncated label, got %q", label)
	}
}

func TestHierarchyGraphWithoutSnapshot(t *testing.T) {
	builder := NewGraphBuilder(testLogger(t))

	graph, err := builder.Build(context.Background(), nil, 1, DefaultMaxLevels, DefaultMaxLevels)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Fatalf("expected empty graph, got %+v", graph)
	}
}
