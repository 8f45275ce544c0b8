package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

type OptimizationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.OptimizationRun) error
	ListByConceptSet(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]types.OptimizationRun, error)
}

type optimizationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOptimizationRunRepo(db *gorm.DB, baseLog *logger.Logger) OptimizationRunRepo {
	return &optimizationRunRepo{
		db:  db,
		log: baseLog.With("repo", "OptimizationRunRepo"),
	}
}

func (r *optimizationRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.OptimizationRun) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Create(run).Error
}

func (r *optimizationRunRepo) ListByConceptSet(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]types.OptimizationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.OptimizationRun
	err := transaction.WithContext(ctx).
		Where("concept_set_id = ?", setID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
