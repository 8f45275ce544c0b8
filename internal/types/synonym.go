package types

type ConceptSynonym struct {
	ConceptID          int64  `gorm:"column:concept_id;index:idx_concept_synonym_concept" json:"concept_id"`
	ConceptSynonymName string `gorm:"column:concept_synonym_name" json:"concept_synonym_name"`
	LanguageConceptID  int64  `gorm:"column:language_concept_id" json:"language_concept_id"`
}

func (ConceptSynonym) TableName() string { return "concept_synonym" }
