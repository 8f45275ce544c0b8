package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

type ConceptSetRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConceptSet, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.ConceptSet, error)
	Create(ctx context.Context, tx *gorm.DB, set *types.ConceptSet) error
	GetItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]types.ConceptSetItem, error)
	ReplaceItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID, items []types.ConceptSetItem) error
}

type conceptSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptSetRepo(db *gorm.DB, baseLog *logger.Logger) ConceptSetRepo {
	return &conceptSetRepo{
		db:  db,
		log: baseLog.With("repo", "ConceptSetRepo"),
	}
}

func (r *conceptSetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConceptSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.ConceptSet
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

func (r *conceptSetRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ConceptSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.ConceptSet
	err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conceptSetRepo) Create(ctx context.Context, tx *gorm.DB, set *types.ConceptSet) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if set.ID == uuid.Nil {
		set.ID = uuid.New()
	}
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now
	return transaction.WithContext(ctx).Create(set).Error
}

func (r *conceptSetRepo) GetItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]types.ConceptSetItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var items []types.ConceptSetItem
	err := transaction.WithContext(ctx).
		Where("concept_set_id = ?", setID).
		Order("concept_id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *conceptSetRepo) ReplaceItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID, items []types.ConceptSetItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	err := transaction.WithContext(ctx).
		Where("concept_set_id = ?", setID).
		Delete(&types.ConceptSetItem{}).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].ConceptSetID = setID
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
	}
	return transaction.WithContext(ctx).Create(&items).Error
}
