package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

type MappingRepo interface {
	ListByGeneralConcept(ctx context.Context, tx *gorm.DB, generalConceptID uuid.UUID) ([]types.ConceptMapping, error)
	// ExistingTargetIDs returns the vocabulary concept ids already mapped
	// (manual or derived) for one general concept.
	ExistingTargetIDs(ctx context.Context, tx *gorm.DB, generalConceptID uuid.UUID) (map[int64]bool, error)
	CreateManual(ctx context.Context, tx *gorm.DB, mapping *types.ConceptMapping) error
	CountBySource(ctx context.Context, tx *gorm.DB, source types.MappingSource) (int64, error)
}

type mappingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMappingRepo(db *gorm.DB, baseLog *logger.Logger) MappingRepo {
	return &mappingRepo{
		db:  db,
		log: baseLog.With("repo", "MappingRepo"),
	}
}

func (r *mappingRepo) ListByGeneralConcept(ctx context.Context, tx *gorm.DB, generalConceptID uuid.UUID) ([]types.ConceptMapping, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.ConceptMapping
	err := transaction.WithContext(ctx).
		Where("general_concept_id = ?", generalConceptID).
		Order("recommended DESC").
		Order("concept_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mappingRepo) ExistingTargetIDs(ctx context.Context, tx *gorm.DB, generalConceptID uuid.UUID) (map[int64]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []int64
	err := transaction.WithContext(ctx).
		Model(&types.ConceptMapping{}).
		Where("general_concept_id = ?", generalConceptID).
		Pluck("concept_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *mappingRepo) CreateManual(ctx context.Context, tx *gorm.DB, mapping *types.ConceptMapping) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	mapping.Source = types.MappingSourceManual
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Create(mapping).Error
}

func (r *mappingRepo) CountBySource(ctx context.Context, tx *gorm.DB, source types.MappingSource) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.ConceptMapping{}).
		Where("source = ?", source).
		Count(&n).Error
	return n, err
}
