package vocab

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/types"
)

var testDBSeq int64

type fixture struct {
	concepts      []types.Concept
	relationships []types.ConceptRelationship
	ancestors     []types.ConceptAncestor
	synonyms      []types.ConceptSynonym
	relMetas      []types.RelationshipMeta
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestSnapshot(t *testing.T, fx fixture) *Snapshot {
	t.Helper()
	db := newTestDB(t)
	err := db.AutoMigrate(
		&types.Concept{},
		&types.ConceptRelationship{},
		&types.ConceptAncestor{},
		&types.ConceptSynonym{},
		&types.RelationshipMeta{},
	)
	if err != nil {
		t.Fatalf("migrate snapshot tables: %v", err)
	}
	if len(fx.concepts) > 0 {
		if err := db.Create(&fx.concepts).Error; err != nil {
			t.Fatalf("insert concepts: %v", err)
		}
	}
	if len(fx.relationships) > 0 {
		if err := db.Create(&fx.relationships).Error; err != nil {
			t.Fatalf("insert relationships: %v", err)
		}
	}
	if len(fx.ancestors) > 0 {
		if err := db.Create(&fx.ancestors).Error; err != nil {
			t.Fatalf("insert ancestors: %v", err)
		}
	}
	if len(fx.synonyms) > 0 {
		if err := db.Create(&fx.synonyms).Error; err != nil {
			t.Fatalf("insert synonyms: %v", err)
		}
	}
	if len(fx.relMetas) > 0 {
		if err := db.Create(&fx.relMetas).Error; err != nil {
			t.Fatalf("insert relationship metas: %v", err)
		}
	}
	return &Snapshot{
		db:                  db,
		hasSynonyms:         len(fx.synonyms) > 0,
		hasRelationshipMeta: len(fx.relMetas) > 0,
	}
}

func standardConcept(id int64, name, domain, vocabulary, class string) types.Concept {
	return types.Concept{
		ConceptID:       id,
		ConceptName:     name,
		DomainID:        domain,
		VocabularyID:    vocabulary,
		ConceptClassID:  class,
		StandardConcept: "S",
	}
}

func closureRow(ancestor, descendant int64, minSep int) types.ConceptAncestor {
	return types.ConceptAncestor{
		AncestorConceptID:     ancestor,
		DescendantConceptID:   descendant,
		MinLevelsOfSeparation: minSep,
		MaxLevelsOfSeparation: minSep,
	}
}

func isaMeta() types.RelationshipMeta {
	return types.RelationshipMeta{
		RelationshipID:        "Is a",
		RelationshipName:      "Is a",
		IsHierarchical:        "1",
		DefinesAncestry:       "1",
		ReverseRelationshipID: "Subsumes",
	}
}
