package vocab

import (
	"context"
	"sort"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

// RelatedConcept is one query-engine result row: a concept plus the
// relationship label that produced it.
type RelatedConcept struct {
	ConceptID      int64              `json:"concept_id"`
	ConceptName    string             `json:"concept_name"`
	DomainID       string             `json:"domain_id"`
	VocabularyID   string             `json:"vocabulary_id"`
	ConceptClassID string             `json:"concept_class_id"`
	StandardTier   types.StandardTier `json:"standard_tier"`
	Valid          bool               `json:"valid"`
	RelationshipID string             `json:"relationship_id"`
	Recommended    bool               `json:"recommended,omitempty"`
}

// SynonymRow is one synonym of a concept with its language resolved to a
// display name when the language concept exists.
type SynonymRow struct {
	ConceptID         int64  `json:"concept_id"`
	SynonymName       string `json:"synonym_name"`
	LanguageConceptID int64  `json:"language_concept_id"`
	LanguageName      string `json:"language_name"`
}

// rawConceptRow is the scan target for joined concept selects.
type rawConceptRow struct {
	ConceptID       int64
	ConceptName     string
	DomainID        string
	VocabularyID    string
	ConceptClassID  string
	StandardConcept string
	InvalidReason   string
	RelationshipID  string
}

func (r rawConceptRow) toRelated() RelatedConcept {
	c := types.Concept{StandardConcept: r.StandardConcept, InvalidReason: r.InvalidReason}
	return RelatedConcept{
		ConceptID:      r.ConceptID,
		ConceptName:    r.ConceptName,
		DomainID:       r.DomainID,
		VocabularyID:   r.VocabularyID,
		ConceptClassID: r.ConceptClassID,
		StandardTier:   c.StandardTier(),
		Valid:          c.Valid(),
		RelationshipID: r.RelationshipID,
	}
}

const conceptJoinColumns = "c.concept_id, c.concept_name, c.domain_id, c.vocabulary_id, c.concept_class_id, c.standard_concept, c.invalid_reason"

// Engine holds the stateless concept-graph query functions. Every method
// takes a snapshot and degrades to empty results when it is nil; rows
// referencing concepts absent from the concept table are dropped by the
// inner joins rather than failing the query.
type Engine struct {
	log *logger.Logger
}

func NewEngine(baseLog *logger.Logger) *Engine {
	return &Engine{log: baseLog.With("component", "ConceptGraphQueryEngine")}
}

// RelatedConcepts returns every concept reachable from conceptID as the
// source side of a relationship edge. With filterToStandardValid the
// targets are restricted to Standard, valid concepts and ordered by
// relationship kind then concept id; otherwise results are grouped by
// relationship kind ordered by descending kind frequency, then by name.
func (e *Engine) RelatedConcepts(ctx context.Context, snap *Snapshot, conceptID int64, filterToStandardValid bool) ([]RelatedConcept, error) {
	if snap == nil {
		return nil, nil
	}
	q := snap.DB().WithContext(ctx).
		Table("concept_relationship AS cr").
		Select(conceptJoinColumns+", cr.relationship_id").
		Joins("JOIN concept c ON c.concept_id = cr.concept_id_2").
		Where("cr.concept_id_1 = ?", conceptID).
		Where("cr.invalid_reason IS NULL OR cr.invalid_reason = ''")
	if filterToStandardValid {
		q = q.Where("c.standard_concept = ?", "S").
			Where("c.invalid_reason IS NULL OR c.invalid_reason = ''").
			Order("cr.relationship_id").
			Order("c.concept_id")
	}
	var raw []rawConceptRow
	if err := q.Scan(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]RelatedConcept, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toRelated())
	}
	if !filterToStandardValid {
		sortByKindFrequency(out)
	}
	return out, nil
}

// sortByKindFrequency orders rows by descending frequency of their
// relationship kind among the results, then kind name, then concept name.
func sortByKindFrequency(rows []RelatedConcept) {
	freq := map[string]int{}
	for _, r := range rows {
		freq[r.RelationshipID]++
	}
	sort.SliceStable(rows, func(i, j int) bool {
		fi, fj := freq[rows[i].RelationshipID], freq[rows[j].RelationshipID]
		if fi != fj {
			return fi > fj
		}
		if rows[i].RelationshipID != rows[j].RelationshipID {
			return rows[i].RelationshipID < rows[j].RelationshipID
		}
		return rows[i].ConceptName < rows[j].ConceptName
	})
}

// DescendantConcepts returns the Standard, valid descendants of conceptID
// from the ancestor closure, labeled "Is a".
func (e *Engine) DescendantConcepts(ctx context.Context, snap *Snapshot, conceptID int64) ([]RelatedConcept, error) {
	if snap == nil {
		return nil, nil
	}
	var raw []rawConceptRow
	err := snap.DB().WithContext(ctx).
		Table("concept_ancestor AS ca").
		Select(conceptJoinColumns).
		Joins("JOIN concept c ON c.concept_id = ca.descendant_concept_id").
		Where("ca.ancestor_concept_id = ?", conceptID).
		Where("ca.descendant_concept_id <> ca.ancestor_concept_id").
		Where("c.standard_concept = ?", "S").
		Where("c.invalid_reason IS NULL OR c.invalid_reason = ''").
		Order("c.concept_name").
		Scan(&raw).Error
	if err != nil {
		return nil, err
	}
	out := make([]RelatedConcept, 0, len(raw))
	for _, r := range raw {
		rel := r.toRelated()
		rel.RelationshipID = "Is a"
		out = append(out, rel)
	}
	return out, nil
}

// HierarchyNeighbors returns the ancestors and descendants of conceptID
// (self excluded), each labeled Ancestor or Descendant. When a direct
// ancestry-defining relationship edge exists between the pair, the label
// is resolved from that edge's direction; otherwise it falls back to the
// closure side the neighbor was found on.
func (e *Engine) HierarchyNeighbors(ctx context.Context, snap *Snapshot, conceptID int64) ([]RelatedConcept, error) {
	if snap == nil {
		return nil, nil
	}
	resolver, err := newDirectionResolver(ctx, snap)
	if err != nil {
		return nil, err
	}

	ancestors, err := e.closureSide(ctx, snap, conceptID, true)
	if err != nil {
		return nil, err
	}
	descendants, err := e.closureSide(ctx, snap, conceptID, false)
	if err != nil {
		return nil, err
	}

	neighborIDs := make([]int64, 0, len(ancestors)+len(descendants))
	for _, r := range ancestors {
		neighborIDs = append(neighborIDs, r.ConceptID)
	}
	for _, r := range descendants {
		neighborIDs = append(neighborIDs, r.ConceptID)
	}
	direct := map[int64]string{}
	if len(neighborIDs) > 0 && len(resolver.kinds) > 0 {
		var edges []types.ConceptRelationship
		err := snap.DB().WithContext(ctx).
			Where("relationship_id IN ?", resolver.kindIDs()).
			Where(
				snap.DB().Where("concept_id_1 = ? AND concept_id_2 IN ?", conceptID, neighborIDs).
					Or("concept_id_2 = ? AND concept_id_1 IN ?", conceptID, neighborIDs),
			).
			Find(&edges).Error
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			childToParent := resolver.childToParent(edge.RelationshipID)
			switch {
			case edge.ConceptID1 == conceptID && childToParent:
				direct[edge.ConceptID2] = "Ancestor"
			case edge.ConceptID1 == conceptID && !childToParent:
				direct[edge.ConceptID2] = "Descendant"
			case edge.ConceptID2 == conceptID && childToParent:
				direct[edge.ConceptID1] = "Descendant"
			case edge.ConceptID2 == conceptID && !childToParent:
				direct[edge.ConceptID1] = "Ancestor"
			}
		}
	}

	out := make([]RelatedConcept, 0, len(neighborIDs))
	for _, r := range ancestors {
		r.RelationshipID = "Ancestor"
		if label, ok := direct[r.ConceptID]; ok {
			r.RelationshipID = label
		}
		out = append(out, r)
	}
	for _, r := range descendants {
		r.RelationshipID = "Descendant"
		if label, ok := direct[r.ConceptID]; ok {
			r.RelationshipID = label
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) closureSide(ctx context.Context, snap *Snapshot, conceptID int64, ancestors bool) ([]RelatedConcept, error) {
	q := snap.DB().WithContext(ctx).
		Table("concept_ancestor AS ca").
		Select(conceptJoinColumns).
		Where("ca.ancestor_concept_id <> ca.descendant_concept_id")
	if ancestors {
		q = q.Joins("JOIN concept c ON c.concept_id = ca.ancestor_concept_id").
			Where("ca.descendant_concept_id = ?", conceptID)
	} else {
		q = q.Joins("JOIN concept c ON c.concept_id = ca.descendant_concept_id").
			Where("ca.ancestor_concept_id = ?", conceptID)
	}
	var raw []rawConceptRow
	if err := q.Order("c.concept_name").Scan(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]RelatedConcept, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toRelated())
	}
	return out, nil
}

// Synonyms returns all synonyms of conceptID sorted alphabetically, with
// the language concept resolved to its display name where possible.
func (e *Engine) Synonyms(ctx context.Context, snap *Snapshot, conceptID int64) ([]SynonymRow, error) {
	if snap == nil || !snap.HasSynonyms() {
		return nil, nil
	}
	var rows []SynonymRow
	err := snap.DB().WithContext(ctx).
		Table("concept_synonym AS cs").
		Select("cs.concept_id, cs.concept_synonym_name AS synonym_name, cs.language_concept_id, COALESCE(lc.concept_name, '') AS language_name").
		Joins("LEFT JOIN concept lc ON lc.concept_id = cs.language_concept_id").
		Where("cs.concept_id = ?", conceptID).
		Order("cs.concept_synonym_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AllRelatedForRecommendation unions related concepts (Standard, valid)
// with descendant concepts, de-duplicated by concept id (first occurrence
// wins), flags rows already mapped, and sorts recommended-first then by
// name.
func (e *Engine) AllRelatedForRecommendation(ctx context.Context, snap *Snapshot, conceptID int64, existingMappings map[int64]bool) ([]RelatedConcept, error) {
	if snap == nil {
		return nil, nil
	}
	related, err := e.RelatedConcepts(ctx, snap, conceptID, true)
	if err != nil {
		return nil, err
	}
	descendants, err := e.DescendantConcepts(ctx, snap, conceptID)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	out := make([]RelatedConcept, 0, len(related)+len(descendants))
	for _, r := range append(related, descendants...) {
		if seen[r.ConceptID] {
			continue
		}
		seen[r.ConceptID] = true
		r.Recommended = existingMappings[r.ConceptID]
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Recommended != out[j].Recommended {
			return out[i].Recommended
		}
		return out[i].ConceptName < out[j].ConceptName
	})
	return out, nil
}
