package vocab

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/types"
)

const insertBatchSize = 1000

// snapshotSeq makes each in-memory snapshot DSN unique. A shared-cache
// DSN derived from the directory path would attach a reload to the
// database the live snapshot is still reading.
var snapshotSeq int64

// Snapshot is an immutable, query-capable view of one loaded vocabulary.
// Any number of concurrent readers may share it; nothing mutates it after
// Open returns.
type Snapshot struct {
	db                  *gorm.DB
	hasSynonyms         bool
	hasRelationshipMeta bool
}

func (s *Snapshot) DB() *gorm.DB              { return s.db }
func (s *Snapshot) HasSynonyms() bool         { return s.hasSynonyms }
func (s *Snapshot) HasRelationshipMeta() bool { return s.hasRelationshipMeta }

// TableCounts reports per-table row counts, used by the health surface.
func (s *Snapshot) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	models := map[string]interface{}{
		"concept":              &types.Concept{},
		"concept_relationship": &types.ConceptRelationship{},
		"concept_ancestor":     &types.ConceptAncestor{},
		"concept_synonym":      &types.ConceptSynonym{},
		"relationship":         &types.RelationshipMeta{},
	}
	for name, model := range models {
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// CheckClosureTransitivity verifies that the ancestor closure is in fact
// transitively closed: for all (A,B) and (B,C), (A,C) must exist. Intended
// for fixture validation; it is quadratic in closure fan-out.
func (s *Snapshot) CheckClosureTransitivity(ctx context.Context) error {
	var missing int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM concept_ancestor ab
		JOIN concept_ancestor bc
		  ON bc.ancestor_concept_id = ab.descendant_concept_id
		LEFT JOIN concept_ancestor ac
		  ON ac.ancestor_concept_id = ab.ancestor_concept_id
		 AND ac.descendant_concept_id = bc.descendant_concept_id
		WHERE ac.ancestor_concept_id IS NULL
		  AND ab.ancestor_concept_id <> ab.descendant_concept_id
		  AND bc.ancestor_concept_id <> bc.descendant_concept_id
	`).Scan(&missing).Error
	if err != nil {
		return fmt.Errorf("transitivity check: %w", err)
	}
	if missing > 0 {
		return fmt.Errorf("ancestor closure is not transitive: %d missing pairs", missing)
	}
	return nil
}

// Store opens vocabulary snapshots from a sqlite file or a directory of
// flat table files.
type Store struct {
	log *logger.Logger
}

func NewStore(baseLog *logger.Logger) *Store {
	return &Store{log: baseLog.With("component", "VocabularyStore")}
}

// Open loads a snapshot from location. A *.db / *.sqlite file is opened
// directly; a directory is expected to contain the vocabulary tables as
// CSV/TSV files (case-insensitive names) and is loaded into an in-memory
// database. A missing location or missing required table yields
// ErrSnapshotNotFound.
func (s *Store) Open(ctx context.Context, location string) (*Snapshot, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrSnapshotNotFound, location)
	}
	if info.IsDir() {
		dsn := fmt.Sprintf("file:vocabsnapshot%d?mode=memory&cache=shared", atomic.AddInt64(&snapshotSeq, 1))
		db, err := newSnapshotDB(dsn)
		if err != nil {
			return nil, err
		}
		return s.LoadDirectoryInto(ctx, location, db)
	}
	db, err := newSnapshotDB(location)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, db)
}

// LoadDirectoryInto parses the table files under dir in parallel and bulk
// inserts them into db. The snapshot is returned only once fully built, so
// readers never observe a partial load.
func (s *Store) LoadDirectoryInto(ctx context.Context, dir string, db *gorm.DB) (*Snapshot, error) {
	if err := db.AutoMigrate(
		&types.Concept{},
		&types.ConceptRelationship{},
		&types.ConceptAncestor{},
		&types.ConceptSynonym{},
		&types.RelationshipMeta{},
	); err != nil {
		return nil, fmt.Errorf("create snapshot tables: %w", err)
	}

	var (
		concepts      []types.Concept
		relationships []types.ConceptRelationship
		ancestors     []types.ConceptAncestor
		synonyms      []types.ConceptSynonym
		relMetas      []types.RelationshipMeta
	)

	// Independent files, no ordering dependency: parse in parallel,
	// insert sequentially (single sqlite writer).
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path := findTableFile(dir, "concept")
		if path == "" {
			return fmt.Errorf("%w: concept table missing in %s", pkgerrors.ErrSnapshotNotFound, dir)
		}
		var err error
		concepts, err = parseConcepts(gctx, path)
		return err
	})
	g.Go(func() error {
		path := findTableFile(dir, "concept_relationship")
		if path == "" {
			return fmt.Errorf("%w: concept_relationship table missing in %s", pkgerrors.ErrSnapshotNotFound, dir)
		}
		var err error
		relationships, err = parseRelationships(gctx, path)
		return err
	})
	g.Go(func() error {
		path := findTableFile(dir, "concept_ancestor")
		if path == "" {
			return fmt.Errorf("%w: concept_ancestor table missing in %s", pkgerrors.ErrSnapshotNotFound, dir)
		}
		var err error
		ancestors, err = parseAncestors(gctx, path)
		return err
	})
	g.Go(func() error {
		path := findTableFile(dir, "concept_synonym")
		if path == "" {
			return nil
		}
		var err error
		synonyms, err = parseSynonyms(gctx, path)
		return err
	})
	g.Go(func() error {
		path := findTableFile(dir, "relationship")
		if path == "" {
			return nil
		}
		var err error
		relMetas, err = parseRelationshipMetas(gctx, path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := insertBatched(ctx, db, concepts); err != nil {
		return nil, fmt.Errorf("load concept: %w", err)
	}
	if err := insertBatched(ctx, db, relationships); err != nil {
		return nil, fmt.Errorf("load concept_relationship: %w", err)
	}
	if err := insertBatched(ctx, db, ancestors); err != nil {
		return nil, fmt.Errorf("load concept_ancestor: %w", err)
	}
	if err := insertBatched(ctx, db, synonyms); err != nil {
		return nil, fmt.Errorf("load concept_synonym: %w", err)
	}
	if err := insertBatched(ctx, db, relMetas); err != nil {
		return nil, fmt.Errorf("load relationship: %w", err)
	}

	snap := &Snapshot{
		db:                  db,
		hasSynonyms:         len(synonyms) > 0,
		hasRelationshipMeta: len(relMetas) > 0,
	}
	if !snap.hasSynonyms {
		s.log.Warn("Snapshot loaded without concept_synonym table, synonym queries will be empty", "dir", dir)
	}
	if !snap.hasRelationshipMeta {
		s.log.Warn("Snapshot loaded without relationship table, hierarchy direction resolution degrades to closure labels", "dir", dir)
	}
	s.log.Info("Vocabulary snapshot loaded",
		"dir", dir,
		"concepts", len(concepts),
		"relationships", len(relationships),
		"ancestors", len(ancestors),
		"synonyms", len(synonyms),
		"relationship_kinds", len(relMetas),
	)
	return snap, nil
}

func (s *Store) verify(ctx context.Context, db *gorm.DB) (*Snapshot, error) {
	migrator := db.Migrator()
	for _, required := range []string{"concept", "concept_relationship", "concept_ancestor"} {
		if !migrator.HasTable(required) {
			return nil, fmt.Errorf("%w: table %s missing", pkgerrors.ErrSnapshotNotFound, required)
		}
	}
	snap := &Snapshot{
		db:                  db,
		hasSynonyms:         migrator.HasTable("concept_synonym"),
		hasRelationshipMeta: migrator.HasTable("relationship"),
	}
	counts, err := snap.TableCounts(ctx)
	if err == nil {
		s.log.Info("Vocabulary snapshot opened",
			"concepts", counts["concept"],
			"relationships", counts["concept_relationship"],
			"ancestors", counts["concept_ancestor"],
		)
	}
	return snap, nil
}

func newSnapshotDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	if strings.Contains(dsn, "mode=memory") {
		// A shared-cache in-memory database disappears when its last
		// connection closes; pin the pool to one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func insertBatched[T any](ctx context.Context, db *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

// findTableFile locates <name>.csv or <name>.tsv under dir, matching the
// file name case-insensitively.
func findTableFile(dir, name string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.ToLower(e.Name())
		if base == name+".csv" || base == name+".tsv" {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

type tableReader struct {
	r      *csv.Reader
	f      *os.File
	fields map[string]int
}

func openTable(path string) (*tableReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	peek, _ := br.Peek(4096)
	comma := ','
	if strings.ContainsRune(string(peek), '\t') {
		comma = '\t'
	}
	r := csv.NewReader(br)
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	fields := make(map[string]int, len(header))
	for i, h := range header {
		fields[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &tableReader{r: r, f: f, fields: fields}, nil
}

func (t *tableReader) close() { _ = t.f.Close() }

func (t *tableReader) field(record []string, name string) string {
	i, ok := t.fields[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (t *tableReader) intField(record []string, name string) (int64, bool) {
	v := t.field(record, name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseConcepts(ctx context.Context, path string) ([]types.Concept, error) {
	t, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	var out []types.Concept
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := t.r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id, ok := t.intField(record, "concept_id")
		if !ok {
			continue
		}
		out = append(out, types.Concept{
			ConceptID:       id,
			ConceptName:     t.field(record, "concept_name"),
			DomainID:        t.field(record, "domain_id"),
			VocabularyID:    t.field(record, "vocabulary_id"),
			ConceptClassID:  t.field(record, "concept_class_id"),
			StandardConcept: t.field(record, "standard_concept"),
			ConceptCode:     t.field(record, "concept_code"),
			ValidStartDate:  t.field(record, "valid_start_date"),
			ValidEndDate:    t.field(record, "valid_end_date"),
			InvalidReason:   t.field(record, "invalid_reason"),
		})
	}
}

func parseRelationships(ctx context.Context, path string) ([]types.ConceptRelationship, error) {
	t, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	var out []types.ConceptRelationship
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := t.r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id1, ok1 := t.intField(record, "concept_id_1")
		id2, ok2 := t.intField(record, "concept_id_2")
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, types.ConceptRelationship{
			ConceptID1:     id1,
			ConceptID2:     id2,
			RelationshipID: t.field(record, "relationship_id"),
			ValidStartDate: t.field(record, "valid_start_date"),
			ValidEndDate:   t.field(record, "valid_end_date"),
			InvalidReason:  t.field(record, "invalid_reason"),
		})
	}
}

func parseAncestors(ctx context.Context, path string) ([]types.ConceptAncestor, error) {
	t, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	var out []types.ConceptAncestor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := t.r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		anc, ok1 := t.intField(record, "ancestor_concept_id")
		desc, ok2 := t.intField(record, "descendant_concept_id")
		if !ok1 || !ok2 {
			continue
		}
		minSep, _ := t.intField(record, "min_levels_of_separation")
		maxSep, _ := t.intField(record, "max_levels_of_separation")
		out = append(out, types.ConceptAncestor{
			AncestorConceptID:     anc,
			DescendantConceptID:   desc,
			MinLevelsOfSeparation: int(minSep),
			MaxLevelsOfSeparation: int(maxSep),
		})
	}
}

func parseSynonyms(ctx context.Context, path string) ([]types.ConceptSynonym, error) {
	t, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	var out []types.ConceptSynonym
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := t.r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id, ok := t.intField(record, "concept_id")
		if !ok {
			continue
		}
		lang, _ := t.intField(record, "language_concept_id")
		out = append(out, types.ConceptSynonym{
			ConceptID:          id,
			ConceptSynonymName: t.field(record, "concept_synonym_name"),
			LanguageConceptID:  lang,
		})
	}
}

func parseRelationshipMetas(ctx context.Context, path string) ([]types.RelationshipMeta, error) {
	t, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	var out []types.RelationshipMeta
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := t.r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id := t.field(record, "relationship_id")
		if id == "" {
			continue
		}
		conceptID, _ := t.intField(record, "relationship_concept_id")
		out = append(out, types.RelationshipMeta{
			RelationshipID:        id,
			RelationshipName:      t.field(record, "relationship_name"),
			IsHierarchical:        t.field(record, "is_hierarchical"),
			DefinesAncestry:       t.field(record, "defines_ancestry"),
			ReverseRelationshipID: t.field(record, "reverse_relationship_id"),
			RelationshipConceptID: conceptID,
		})
	}
}
