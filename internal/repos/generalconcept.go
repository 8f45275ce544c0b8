package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

type GeneralConceptRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GeneralConcept, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.GeneralConcept, error)
	Create(ctx context.Context, tx *gorm.DB, general *types.GeneralConcept) error
}

type generalConceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneralConceptRepo(db *gorm.DB, baseLog *logger.Logger) GeneralConceptRepo {
	return &generalConceptRepo{
		db:  db,
		log: baseLog.With("repo", "GeneralConceptRepo"),
	}
}

func (r *generalConceptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GeneralConcept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.GeneralConcept
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *generalConceptRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.GeneralConcept, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.GeneralConcept
	err := transaction.WithContext(ctx).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *generalConceptRepo) Create(ctx context.Context, tx *gorm.DB, general *types.GeneralConcept) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if general.ID == uuid.Nil {
		general.ID = uuid.New()
	}
	now := time.Now().UTC()
	general.CreatedAt = now
	general.UpdatedAt = now
	return transaction.WithContext(ctx).Create(general).Error
}
