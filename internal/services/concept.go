package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/platform/cache"
	"github.com/phenolab/termhub-backend/internal/repos"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

const relatedCacheTTL = 15 * time.Minute

// ConceptService exposes the read-side concept graph queries. Every
// method degrades to empty results when no snapshot is loaded.
type ConceptService interface {
	Related(ctx context.Context, conceptID int64, standardOnly bool) ([]vocab.RelatedConcept, error)
	Descendants(ctx context.Context, conceptID int64) ([]vocab.RelatedConcept, error)
	HierarchyNeighbors(ctx context.Context, conceptID int64) ([]vocab.RelatedConcept, error)
	Synonyms(ctx context.Context, conceptID int64) ([]vocab.SynonymRow, error)
	RecommendationPool(ctx context.Context, conceptID int64, generalConceptID uuid.UUID) ([]vocab.RelatedConcept, error)
}

type conceptService struct {
	log         *logger.Logger
	snapshots   SnapshotService
	engine      *vocab.Engine
	mappingRepo repos.MappingRepo
	cache       cache.Cache
}

func NewConceptService(
	baseLog *logger.Logger,
	snapshots SnapshotService,
	engine *vocab.Engine,
	mappingRepo repos.MappingRepo,
	queryCache cache.Cache,
) ConceptService {
	return &conceptService{
		log:         baseLog.With("service", "ConceptService"),
		snapshots:   snapshots,
		engine:      engine,
		mappingRepo: mappingRepo,
		cache:       queryCache,
	}
}

func (s *conceptService) Related(ctx context.Context, conceptID int64, standardOnly bool) ([]vocab.RelatedConcept, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return []vocab.RelatedConcept{}, nil
	}
	key := fmt.Sprintf("related:%d:%t", conceptID, standardOnly)
	if s.cache != nil {
		var cached []vocab.RelatedConcept
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("Cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}
	rows, err := s.engine.RelatedConcepts(ctx, snap, conceptID, standardOnly)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []vocab.RelatedConcept{}
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, rows, relatedCacheTTL); err != nil {
			s.log.Warn("Cache write failed", "key", key, "error", err)
		}
	}
	return rows, nil
}

func (s *conceptService) Descendants(ctx context.Context, conceptID int64) ([]vocab.RelatedConcept, error) {
	rows, err := s.engine.DescendantConcepts(ctx, s.snapshots.Current(), conceptID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []vocab.RelatedConcept{}
	}
	return rows, nil
}

func (s *conceptService) HierarchyNeighbors(ctx context.Context, conceptID int64) ([]vocab.RelatedConcept, error) {
	rows, err := s.engine.HierarchyNeighbors(ctx, s.snapshots.Current(), conceptID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []vocab.RelatedConcept{}
	}
	return rows, nil
}

func (s *conceptService) Synonyms(ctx context.Context, conceptID int64) ([]vocab.SynonymRow, error) {
	rows, err := s.engine.Synonyms(ctx, s.snapshots.Current(), conceptID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []vocab.SynonymRow{}
	}
	return rows, nil
}

func (s *conceptService) RecommendationPool(ctx context.Context, conceptID int64, generalConceptID uuid.UUID) ([]vocab.RelatedConcept, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return []vocab.RelatedConcept{}, nil
	}
	existing := map[int64]bool{}
	if generalConceptID != uuid.Nil {
		var err error
		existing, err = s.mappingRepo.ExistingTargetIDs(ctx, nil, generalConceptID)
		if err != nil {
			return nil, fmt.Errorf("load existing mappings: %w", err)
		}
	}
	rows, err := s.engine.AllRelatedForRecommendation(ctx, snap, conceptID, existing)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []vocab.RelatedConcept{}
	}
	return rows, nil
}
