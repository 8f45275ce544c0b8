package types

// ConceptRelationship is a directed typed edge between two concepts.
type ConceptRelationship struct {
	ConceptID1     int64  `gorm:"column:concept_id_1;index:idx_concept_relationship_source" json:"concept_id_1"`
	ConceptID2     int64  `gorm:"column:concept_id_2;index:idx_concept_relationship_target" json:"concept_id_2"`
	RelationshipID string `gorm:"column:relationship_id" json:"relationship_id"`
	ValidStartDate string `gorm:"column:valid_start_date" json:"valid_start_date"`
	ValidEndDate   string `gorm:"column:valid_end_date" json:"valid_end_date"`
	InvalidReason  string `gorm:"column:invalid_reason" json:"invalid_reason"`
}

func (ConceptRelationship) TableName() string { return "concept_relationship" }

// RelationshipMeta declares a relationship kind, its reverse kind and
// whether edges of this kind define ancestry (feed the closure table).
type RelationshipMeta struct {
	RelationshipID        string `gorm:"column:relationship_id;primaryKey" json:"relationship_id"`
	RelationshipName      string `gorm:"column:relationship_name" json:"relationship_name"`
	IsHierarchical        string `gorm:"column:is_hierarchical" json:"is_hierarchical"`
	DefinesAncestry       string `gorm:"column:defines_ancestry" json:"defines_ancestry"`
	ReverseRelationshipID string `gorm:"column:reverse_relationship_id" json:"reverse_relationship_id"`
	RelationshipConceptID int64  `gorm:"column:relationship_concept_id" json:"relationship_concept_id"`
}

func (RelationshipMeta) TableName() string { return "relationship" }
