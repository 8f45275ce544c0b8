package types

// StandardTier is the usability tier of a concept for direct use in
// curated sets, derived from the raw standard_concept code.
type StandardTier string

const (
	StandardTierStandard       StandardTier = "Standard"
	StandardTierClassification StandardTier = "Classification"
	StandardTierNonStandard    StandardTier = "Non-standard"
)

// Concept is a coded clinical term node in the vocabulary graph.
// Read-only for the lifetime of a loaded snapshot.
type Concept struct {
	ConceptID       int64  `gorm:"column:concept_id;primaryKey" json:"concept_id"`
	ConceptName     string `gorm:"column:concept_name" json:"concept_name"`
	DomainID        string `gorm:"column:domain_id;index:idx_concept_domain" json:"domain_id"`
	VocabularyID    string `gorm:"column:vocabulary_id;index:idx_concept_vocabulary" json:"vocabulary_id"`
	ConceptClassID  string `gorm:"column:concept_class_id" json:"concept_class_id"`
	StandardConcept string `gorm:"column:standard_concept" json:"standard_concept"`
	ConceptCode     string `gorm:"column:concept_code" json:"concept_code"`
	ValidStartDate  string `gorm:"column:valid_start_date" json:"valid_start_date"`
	ValidEndDate    string `gorm:"column:valid_end_date" json:"valid_end_date"`
	InvalidReason   string `gorm:"column:invalid_reason" json:"invalid_reason"`
}

func (Concept) TableName() string { return "concept" }

func (c *Concept) StandardTier() StandardTier {
	switch c.StandardConcept {
	case "S":
		return StandardTierStandard
	case "C":
		return StandardTierClassification
	default:
		return StandardTierNonStandard
	}
}

// Valid reports whether no invalidation reason is recorded.
func (c *Concept) Valid() bool {
	return c.InvalidReason == ""
}
