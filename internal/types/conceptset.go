package types

import (
	"time"

	"github.com/google/uuid"
)

type ConceptSet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ConceptSet) TableName() string { return "concept_set" }

// ConceptSetItem is one curated entry of a concept set. Owned by the
// curation workflow; the optimizer consumes and produces these.
type ConceptSetItem struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConceptSetID       uuid.UUID `gorm:"type:uuid;not null;index:idx_concept_set_item_set" json:"concept_set_id"`
	ConceptID          int64     `gorm:"column:concept_id;not null" json:"concept_id"`
	Excluded           bool      `gorm:"column:excluded;not null;default:false" json:"excluded"`
	IncludeDescendants bool      `gorm:"column:include_descendants;not null;default:false" json:"include_descendants"`
	IncludeMapped      bool      `gorm:"column:include_mapped;not null;default:false" json:"include_mapped"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

func (ConceptSetItem) TableName() string { return "concept_set_item" }
