package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

type EnrichmentService interface {
	// Run regenerates the derived mapping partition. The whole
	// delete+regenerate sequence runs in one transaction; a failed run
	// leaves the mapping table untouched.
	Run(ctx context.Context, preserveRecommended bool) (*vocab.EnrichStats, error)
}

type enrichmentService struct {
	db        *gorm.DB
	log       *logger.Logger
	snapshots SnapshotService
	enricher  *vocab.Enricher
}

func NewEnrichmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	snapshots SnapshotService,
	enricher *vocab.Enricher,
) EnrichmentService {
	return &enrichmentService{
		db:        db,
		log:       baseLog.With("service", "EnrichmentService"),
		snapshots: snapshots,
		enricher:  enricher,
	}
}

func (s *enrichmentService) Run(ctx context.Context, preserveRecommended bool) (*vocab.EnrichStats, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, pkgerrors.ErrEnrichmentPrecondition
	}
	var stats *vocab.EnrichStats
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		stats, err = s.enricher.Run(ctx, snap, tx, preserveRecommended)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
