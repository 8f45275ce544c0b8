package services

import (
	"context"
	"fmt"
	"time"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/platform/cache"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

const hierarchyCacheTTL = 15 * time.Minute

type HierarchyService interface {
	Graph(ctx context.Context, conceptID int64, maxLevelsUp, maxLevelsDown int) (*vocab.HierarchyGraph, error)
}

type hierarchyService struct {
	log       *logger.Logger
	snapshots SnapshotService
	builder   *vocab.GraphBuilder
	cache     cache.Cache
}

func NewHierarchyService(
	baseLog *logger.Logger,
	snapshots SnapshotService,
	builder *vocab.GraphBuilder,
	queryCache cache.Cache,
) HierarchyService {
	return &hierarchyService{
		log:       baseLog.With("service", "HierarchyService"),
		snapshots: snapshots,
		builder:   builder,
		cache:     queryCache,
	}
}

func (s *hierarchyService) Graph(ctx context.Context, conceptID int64, maxLevelsUp, maxLevelsDown int) (*vocab.HierarchyGraph, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return &vocab.HierarchyGraph{
			Nodes: []vocab.HierarchyNode{},
			Edges: []vocab.HierarchyEdge{},
		}, nil
	}
	key := fmt.Sprintf("hierarchy:%d:%d:%d", conceptID, maxLevelsUp, maxLevelsDown)
	if s.cache != nil {
		var cached vocab.HierarchyGraph
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("Cache read failed", "key", key, "error", err)
		} else if hit {
			return &cached, nil
		}
	}
	graph, err := s.builder.Build(ctx, snap, conceptID, maxLevelsUp, maxLevelsDown)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, graph, hierarchyCacheTTL); err != nil {
			s.log.Warn("Cache write failed", "key", key, "error", err)
		}
	}
	return graph, nil
}
