package types

import (
	"time"

	"github.com/google/uuid"
)

// GeneralConcept is a curator-defined source concept (e.g. a lab analyte
// or a drug substance) that mappings link to vocabulary concepts.
type GeneralConcept struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	Category      string    `gorm:"column:category;index:idx_general_concept_category" json:"category"`
	UnitConceptID *int64    `gorm:"column:unit_concept_id" json:"unit_concept_id,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (GeneralConcept) TableName() string { return "general_concept" }

const GeneralConceptCategoryDrug = "Drug"
