package services

import (
	"context"
	"sync/atomic"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

// SnapshotService owns the currently loaded vocabulary snapshot. The
// snapshot pointer is swapped atomically on reload so readers either see
// the old snapshot or the fully loaded new one, never a partial state.
type SnapshotService interface {
	Load(ctx context.Context, location string) error
	Current() *vocab.Snapshot
	Status(ctx context.Context) *SnapshotStatus
}

type SnapshotStatus struct {
	Available           bool             `json:"available"`
	Location            string           `json:"location,omitempty"`
	HasSynonyms         bool             `json:"has_synonyms"`
	HasRelationshipMeta bool             `json:"has_relationship_meta"`
	TableCounts         map[string]int64 `json:"table_counts,omitempty"`
}

type snapshotService struct {
	log      *logger.Logger
	store    *vocab.Store
	current  atomic.Pointer[vocab.Snapshot]
	location atomic.Pointer[string]
}

func NewSnapshotService(store *vocab.Store, baseLog *logger.Logger) SnapshotService {
	return &snapshotService{
		log:   baseLog.With("service", "SnapshotService"),
		store: store,
	}
}

func (s *snapshotService) Load(ctx context.Context, location string) error {
	snap, err := s.store.Open(ctx, location)
	if err != nil {
		return err
	}
	s.current.Store(snap)
	s.location.Store(&location)
	return nil
}

func (s *snapshotService) Current() *vocab.Snapshot {
	return s.current.Load()
}

func (s *snapshotService) Status(ctx context.Context) *SnapshotStatus {
	snap := s.current.Load()
	if snap == nil {
		return &SnapshotStatus{Available: false}
	}
	status := &SnapshotStatus{
		Available:           true,
		HasSynonyms:         snap.HasSynonyms(),
		HasRelationshipMeta: snap.HasRelationshipMeta(),
	}
	if loc := s.location.Load(); loc != nil {
		status.Location = *loc
	}
	counts, err := snap.TableCounts(ctx)
	if err != nil {
		s.log.Warn("Failed to count snapshot tables", "error", err)
	} else {
		status.TableCounts = counts
	}
	return status
}
