package types

import (
	"time"

	"github.com/google/uuid"
)

type MappingSource string

const (
	// MappingSourceManual rows are curator-authored inputs.
	MappingSourceManual MappingSource = "manual"
	// MappingSourceDerived rows are wholly owned and regenerated by the
	// enrichment engine; a full run deletes them all before recomputing.
	MappingSourceDerived MappingSource = "derived"
)

type ConceptMapping struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	GeneralConceptID uuid.UUID     `gorm:"type:uuid;not null;index:idx_concept_mapping_general" json:"general_concept_id"`
	ConceptID        int64         `gorm:"column:concept_id;not null;index:idx_concept_mapping_concept" json:"concept_id"`
	UnitConceptID    *int64        `gorm:"column:unit_concept_id" json:"unit_concept_id,omitempty"`
	Recommended      bool          `gorm:"column:recommended;not null;default:false" json:"recommended"`
	Source           MappingSource `gorm:"column:source;not null;index:idx_concept_mapping_source" json:"source"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
}

func (ConceptMapping) TableName() string { return "concept_mapping" }
