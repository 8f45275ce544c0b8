package vocab

import (
	"context"
	"fmt"
	"sort"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

// DefaultMaxLevels bounds hierarchy views in each direction when the
// caller does not say otherwise.
const DefaultMaxLevels = 5

const maxNodeLabelLen = 50

const (
	NodeCategorySelected   = "selected"
	NodeCategoryAncestor   = "ancestor"
	NodeCategoryDescendant = "descendant"
	NodeCategoryOther      = "other"
)

type HierarchyNode struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	Level    int    `json:"level"`
	Category string `json:"category"`
}

type HierarchyEdge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type HierarchyStats struct {
	TotalAncestors       int `json:"total_ancestors"`
	TotalDescendants     int `json:"total_descendants"`
	DisplayedAncestors   int `json:"displayed_ancestors"`
	DisplayedDescendants int `json:"displayed_descendants"`
}

type HierarchyGraph struct {
	Nodes []HierarchyNode `json:"nodes"`
	Edges []HierarchyEdge `json:"edges"`
	Stats HierarchyStats  `json:"stats"`
}

// GraphBuilder derives a bounded-depth node/edge view around one concept.
type GraphBuilder struct {
	log *logger.Logger
}

func NewGraphBuilder(baseLog *logger.Logger) *GraphBuilder {
	return &GraphBuilder{log: baseLog.With("component", "HierarchyGraphBuilder")}
}

type levelRow struct {
	ConceptID int64
	Level     int
}

// Build places the selected concept at level 0, ancestors at negative and
// descendants at positive levels (minimum separation across all closure
// paths), drops concepts outside [-maxLevelsUp, +maxLevelsDown], and
// restricts edges to ancestry-defining relationship kinds between
// surviving nodes, oriented parent→child. Stats report total versus
// displayed counts so callers can surface truncation.
func (b *GraphBuilder) Build(ctx context.Context, snap *Snapshot, conceptID int64, maxLevelsUp, maxLevelsDown int) (*HierarchyGraph, error) {
	graph := &HierarchyGraph{Nodes: []HierarchyNode{}, Edges: []HierarchyEdge{}}
	if snap == nil {
		return graph, nil
	}
	if maxLevelsUp < 0 {
		maxLevelsUp = DefaultMaxLevels
	}
	if maxLevelsDown < 0 {
		maxLevelsDown = DefaultMaxLevels
	}

	var ancestors []levelRow
	err := snap.DB().WithContext(ctx).
		Table("concept_ancestor").
		Select("ancestor_concept_id AS concept_id, MIN(min_levels_of_separation) AS level").
		Where("descendant_concept_id = ?", conceptID).
		Where("ancestor_concept_id <> descendant_concept_id").
		Group("ancestor_concept_id").
		Scan(&ancestors).Error
	if err != nil {
		return nil, fmt.Errorf("hierarchy ancestors: %w", err)
	}

	var descendants []levelRow
	err = snap.DB().WithContext(ctx).
		Table("concept_ancestor").
		Select("descendant_concept_id AS concept_id, MIN(min_levels_of_separation) AS level").
		Where("ancestor_concept_id = ?", conceptID).
		Where("ancestor_concept_id <> descendant_concept_id").
		Group("descendant_concept_id").
		Scan(&descendants).Error
	if err != nil {
		return nil, fmt.Errorf("hierarchy descendants: %w", err)
	}

	graph.Stats.TotalAncestors = len(ancestors)
	graph.Stats.TotalDescendants = len(descendants)

	levels := map[int64]int{conceptID: 0}
	for _, r := range ancestors {
		if r.Level <= maxLevelsUp {
			levels[r.ConceptID] = -r.Level
		}
	}
	for _, r := range descendants {
		if r.Level <= maxLevelsDown {
			// Keep the tighter bound if the concept is somehow on both
			// sides of a malformed closure.
			if _, seen := levels[r.ConceptID]; !seen {
				levels[r.ConceptID] = r.Level
			}
		}
	}

	ids := make([]int64, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	var concepts []types.Concept
	if err := snap.DB().WithContext(ctx).Where("concept_id IN ?", ids).Find(&concepts).Error; err != nil {
		return nil, fmt.Errorf("hierarchy concepts: %w", err)
	}
	names := map[int64]string{}
	for _, c := range concepts {
		names[c.ConceptID] = c.ConceptName
	}

	surviving := map[int64]bool{}
	for id, level := range levels {
		name, ok := names[id]
		if !ok && id != conceptID {
			// Closure row pointing at a concept id absent from the
			// concept table: skip it, do not fail the whole graph.
			continue
		}
		surviving[id] = true
		graph.Nodes = append(graph.Nodes, HierarchyNode{
			ID:       id,
			Label:    truncateLabel(name),
			Level:    level,
			Category: categorize(id, conceptID, level),
		})
		switch {
		case level < 0:
			graph.Stats.DisplayedAncestors++
		case level > 0:
			graph.Stats.DisplayedDescendants++
		}
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Level != graph.Nodes[j].Level {
			return graph.Nodes[i].Level < graph.Nodes[j].Level
		}
		return graph.Nodes[i].ID < graph.Nodes[j].ID
	})

	edges, err := b.edgesAmong(ctx, snap, surviving)
	if err != nil {
		return nil, err
	}
	graph.Edges = edges
	return graph, nil
}

func (b *GraphBuilder) edgesAmong(ctx context.Context, snap *Snapshot, surviving map[int64]bool) ([]HierarchyEdge, error) {
	edges := []HierarchyEdge{}
	if len(surviving) < 2 {
		return edges, nil
	}
	resolver, err := newDirectionResolver(ctx, snap)
	if err != nil {
		return nil, err
	}
	if len(resolver.kinds) == 0 {
		return edges, nil
	}

	ids := make([]int64, 0, len(surviving))
	for id := range surviving {
		ids = append(ids, id)
	}
	var rels []types.ConceptRelationship
	err = snap.DB().WithContext(ctx).
		Where("relationship_id IN ?", resolver.kindIDs()).
		Where("concept_id_1 IN ?", ids).
		Where("concept_id_2 IN ?", ids).
		Where("invalid_reason IS NULL OR invalid_reason = ''").
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("hierarchy edges: %w", err)
	}

	seen := map[HierarchyEdge]bool{}
	for _, rel := range rels {
		var edge HierarchyEdge
		if resolver.childToParent(rel.RelationshipID) {
			edge = HierarchyEdge{From: rel.ConceptID2, To: rel.ConceptID1}
		} else {
			edge = HierarchyEdge{From: rel.ConceptID1, To: rel.ConceptID2}
		}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges, nil
}

func truncateLabel(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNodeLabelLen {
		return name
	}
	return string(runes[:maxNodeLabelLen]) + "..."
}

func categorize(id, selectedID int64, level int) string {
	switch {
	case id == selectedID:
		return NodeCategorySelected
	case level < 0:
		return NodeCategoryAncestor
	case level > 0:
		return NodeCategoryDescendant
	default:
		return NodeCategoryOther
	}
}
