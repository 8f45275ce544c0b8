package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/repos"
	"github.com/phenolab/termhub-backend/internal/types"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

type ConceptSetService interface {
	Get(ctx context.Context, id uuid.UUID) (*types.ConceptSet, []types.ConceptSetItem, error)
	List(ctx context.Context) ([]*types.ConceptSet, error)
	Create(ctx context.Context, name string, items []types.ConceptSetItem) (*types.ConceptSet, error)
	// Optimize runs the optimizer over the stored items. Unless dryRun is
	// set, a changed result replaces the stored items and records an
	// optimization run, both within one transaction.
	Optimize(ctx context.Context, id uuid.UUID, dryRun bool) (*vocab.OptimizeResult, error)
	Runs(ctx context.Context, id uuid.UUID) ([]types.OptimizationRun, error)
}

type conceptSetService struct {
	db        *gorm.DB
	log       *logger.Logger
	snapshots SnapshotService
	optimizer *vocab.Optimizer
	setRepo   repos.ConceptSetRepo
	runRepo   repos.OptimizationRunRepo
}

func NewConceptSetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	snapshots SnapshotService,
	optimizer *vocab.Optimizer,
	setRepo repos.ConceptSetRepo,
	runRepo repos.OptimizationRunRepo,
) ConceptSetService {
	return &conceptSetService{
		db:        db,
		log:       baseLog.With("service", "ConceptSetService"),
		snapshots: snapshots,
		optimizer: optimizer,
		setRepo:   setRepo,
		runRepo:   runRepo,
	}
}

func (s *conceptSetService) Get(ctx context.Context, id uuid.UUID) (*types.ConceptSet, []types.ConceptSetItem, error) {
	set, err := s.setRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	if set == nil {
		return nil, nil, pkgerrors.ErrNotFound
	}
	items, err := s.setRepo.GetItems(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	return set, items, nil
}

func (s *conceptSetService) List(ctx context.Context) ([]*types.ConceptSet, error) {
	return s.setRepo.List(ctx, nil)
}

func (s *conceptSetService) Create(ctx context.Context, name string, items []types.ConceptSetItem) (*types.ConceptSet, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: concept set name required", pkgerrors.ErrInvalidArgument)
	}
	set := &types.ConceptSet{Name: name}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.setRepo.Create(ctx, tx, set); err != nil {
			return err
		}
		return s.setRepo.ReplaceItems(ctx, tx, set.ID, items)
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (s *conceptSetService) Optimize(ctx context.Context, id uuid.UUID, dryRun bool) (*vocab.OptimizeResult, error) {
	set, err := s.setRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, pkgerrors.ErrNotFound
	}
	items, err := s.setRepo.GetItems(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	result, err := s.optimizer.Optimize(ctx, s.snapshots.Current(), items)
	if err != nil {
		return nil, err
	}
	if dryRun || result.Status != vocab.OptimizeStatusOK || result.Strategy == vocab.StrategyNone {
		return result, nil
	}

	detail, err := json.Marshal(map[string]interface{}{
		"removed_items": result.RemovedItems,
		"added_items":   result.AddedItems,
	})
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.setRepo.ReplaceItems(ctx, tx, id, result.OptimizedItems); err != nil {
			return err
		}
		run := &types.OptimizationRun{
			ConceptSetID:          id,
			Strategy:              string(result.Strategy),
			RemovedCount:          result.RemovedCount,
			AddedCount:            len(result.AddedItems),
			IterationLimitReached: result.IterationLimitReached,
			Detail:                detail,
		}
		return s.runRepo.Create(ctx, tx, run)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *conceptSetService) Runs(ctx context.Context, id uuid.UUID) ([]types.OptimizationRun, error) {
	return s.runRepo.ListByConceptSet(ctx, nil, id)
}
