package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OptimizationRun is the audit record of one optimizer invocation over a
// concept set. Detail holds the removed/added items as JSON.
type OptimizationRun struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConceptSetID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_optimization_run_set" json:"concept_set_id"`
	Strategy              string         `gorm:"column:strategy;not null" json:"strategy"`
	RemovedCount          int            `gorm:"column:removed_count;not null;default:0" json:"removed_count"`
	AddedCount            int            `gorm:"column:added_count;not null;default:0" json:"added_count"`
	IterationLimitReached bool           `gorm:"column:iteration_limit_reached;not null;default:false" json:"iteration_limit_reached"`
	Detail                datatypes.JSON `gorm:"column:detail" json:"detail"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
}

func (OptimizationRun) TableName() string { return "optimization_run" }
