package types

// ConceptAncestor is one row of the precomputed transitive closure over
// ancestry-defining relationship edges. min_levels_of_separation is the
// shortest hierarchical path length between the pair.
type ConceptAncestor struct {
	AncestorConceptID     int64 `gorm:"column:ancestor_concept_id;index:idx_concept_ancestor_ancestor" json:"ancestor_concept_id"`
	DescendantConceptID   int64 `gorm:"column:descendant_concept_id;index:idx_concept_ancestor_descendant" json:"descendant_concept_id"`
	MinLevelsOfSeparation int   `gorm:"column:min_levels_of_separation" json:"min_levels_of_separation"`
	MaxLevelsOfSeparation int   `gorm:"column:max_levels_of_separation" json:"max_levels_of_separation"`
}

func (ConceptAncestor) TableName() string { return "concept_ancestor" }
