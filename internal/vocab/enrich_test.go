package vocab

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/types"
)

func newAppDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&types.GeneralConcept{}, &types.ConceptMapping{}); err != nil {
		t.Fatalf("migrate app tables: %v", err)
	}
	return db
}

func createGeneral(t *testing.T, db *gorm.DB, name, category string) types.GeneralConcept {
	t.Helper()
	g := types.GeneralConcept{ID: uuid.New(), Name: name, Category: category, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("create general concept: %v", err)
	}
	return g
}

func createManual(t *testing.T, db *gorm.DB, generalID uuid.UUID, conceptID int64, recommended bool) {
	t.Helper()
	m := types.ConceptMapping{
		ID:               uuid.New(),
		GeneralConceptID: generalID,
		ConceptID:        conceptID,
		Recommended:      recommended,
		Source:           types.MappingSourceManual,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create manual mapping: %v", err)
	}
}

func derivedRows(t *testing.T, db *gorm.DB) []types.ConceptMapping {
	t.Helper()
	var rows []types.ConceptMapping
	if err := db.Where("source = ?", types.MappingSourceDerived).Order("concept_id").Find(&rows).Error; err != nil {
		t.Fatalf("load derived mappings: %v", err)
	}
	return rows
}

func TestEnrichWithoutSnapshotFails(t *testing.T) {
	db := newAppDB(t)
	enricher := NewEnricher(testLogger(t))

	_, err := enricher.Run(context.Background(), nil, db, false)
	if !errors.Is(err, pkgerrors.ErrEnrichmentPrecondition) {
		t.Fatalf("expected ErrEnrichmentPrecondition, got %v", err)
	}
}

func TestEnrichSkipsDisallowedVocabularies(t *testing.T) {
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(1, "Office visit", "Procedure", "CPT4", "CPT4"),
			standardConcept(2, "Office visit target", "Procedure", "CPT4", "CPT4"),
		},
		relationships: []types.ConceptRelationship{
			{ConceptID1: 1, ConceptID2: 2, RelationshipID: "Maps to"},
		},
	})
	db := newAppDB(t)
	general := createGeneral(t, db, "Office visit", "Procedure")
	createManual(t, db, general.ID, 1, true)

	enricher := NewEnricher(testLogger(t))
	stats, err := enricher.Run(context.Background(), snap, db, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.InsertedRows != 0 {
		t.Fatalf("expected no derived rows from a disallowed vocabulary, got %d", stats.InsertedRows)
	}
	if rows := derivedRows(t, db); len(rows) != 0 {
		t.Fatalf("expected empty derived partition, got %+v", rows)
	}
}

func TestEnrichPropagatesManualMappings(t *testing.T) {
	invalidTarget := standardConcept(4, "Retired target", "Measurement", "LOINC", "Lab Test")
	invalidTarget.InvalidReason = "D"
	snap := newTestSnapshot(t, fixture{
		concepts: []types.Concept{
			standardConcept(1, "Hemoglobin A1c", "Measurement", "LOINC", "Lab Test"),
			standardConcept(2, "HbA1c in blood", "Measurement", "LOINC", "Lab Test"),
			standardConcept(3, "HbA1c SNOMED", "Measurement", "SNOMED", "Observable Entity"),
			invalidTarget,
			standardConcept(5, "HbA1c by HPLC", "Measurement", "LOINC", "Lab Test"),
			standardConcept(6, "Insulin product", "Drug", "LOINC", "Ingredient"),
		},
		relationships: []types.ConceptRelationship{
			{ConceptID1: 1, ConceptID2: 2, RelationshipID: "Maps to"},
			{ConceptID1: 1, ConceptID2: 3, RelationshipID: "Maps to"},
			{ConceptID1: 1, ConceptID2: 4, RelationshipID: "Mapped from"},
		},
		ancestors: []types.ConceptAncestor{
			closureRow(1, 5, 1),
			closureRow(1, 6, 1),
		},
	})
	db := newAppDB(t)
	general := createGeneral(t, db, "Hemoglobin A1c", "Measurement")
	createManual(t, db, general.ID, 1, true)
	// Non-recommended manual mappings are not propagation roots.
	other := createGeneral(t, db, "Something else", "Measurement")
	createManual(t, db, other.ID, 1, false)

	enricher := NewEnricher(testLogger(t))
	stats, err := enricher.Run(context.Background(), snap, db, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3 is cross-vocabulary, 4 is invalidated, 6 is a Drug-domain concept
	// that is not a Clinical Drug; only 2 and 5 qualify.
	if stats.PropagatedRows != 2 || stats.InsertedRows != 2 {
		t.Fatalf("expected 2 propagated rows, got %+v", stats)
	}
	rows := derivedRows(t, db)
	if len(rows) != 2 || rows[0].ConceptID != 2 || rows[1].ConceptID != 5 {
		t.Fatalf("unexpected derived rows: %+v", rows)
	}
	for _, row := range rows {
		if row.GeneralConceptID != general.ID {
			t.Errorf("derived row attached to wrong general concept: %+v", row)
		}
		if row.Recommended {
			t.Errorf("freshly propagated row must not be recommended: %+v", row)
		}
	}
}

func drugFixture() fixture {
	return fixture{
		concepts: []types.Concept{
			standardConcept(100, "Metformin", "Drug", "RxNorm", "Ingredient"),
			standardConcept(101, "metformin 500 MG", "Drug", "RxNorm", "Clinical Drug Comp"),
			standardConcept(102, "metformin 500 MG Oral Tablet", "Drug", "RxNorm", "Clinical Drug"),
		},
		relationships: []types.ConceptRelationship{
			{ConceptID1: 101, ConceptID2: 100, RelationshipID: "RxNorm has ing"},
			{ConceptID1: 101, ConceptID2: 102, RelationshipID: "Constitutes"},
		},
		ancestors: []types.ConceptAncestor{
			closureRow(100, 102, 2),
		},
	}
}

func TestEnrichDrugExpansionOverridesPropagation(t *testing.T) {
	snap := newTestSnapshot(t, drugFixture())
	db := newAppDB(t)
	// Name match is case-insensitive against the ingredient concept.
	general := createGeneral(t, db, "metformin", types.GeneralConceptCategoryDrug)
	createManual(t, db, general.ID, 100, true)

	enricher := NewEnricher(testLogger(t))
	stats, err := enricher.Run(context.Background(), snap, db, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Step 3 proposes (general, 102) unrecommended via the closure; the
	// drug expansion replaces it with a recommended row.
	if stats.PropagatedRows != 1 || stats.DrugExpansionRows != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	rows := derivedRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("expected the collision to collapse to one row, got %+v", rows)
	}
	if rows[0].ConceptID != 102 || !rows[0].Recommended {
		t.Fatalf("expected recommended clinical drug mapping, got %+v", rows[0])
	}
}

type derivedTuple struct {
	generalID   uuid.UUID
	conceptID   int64
	recommended bool
	source      types.MappingSource
}

func derivedTuples(t *testing.T, db *gorm.DB) []derivedTuple {
	t.Helper()
	rows := derivedRows(t, db)
	out := make([]derivedTuple, 0, len(rows))
	for _, row := range rows {
		out = append(out, derivedTuple{
			generalID:   row.GeneralConceptID,
			conceptID:   row.ConceptID,
			recommended: row.Recommended,
			source:      row.Source,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].generalID != out[j].generalID {
			return out[i].generalID.String() < out[j].generalID.String()
		}
		return out[i].conceptID < out[j].conceptID
	})
	return out
}

func TestEnrichIsIdempotentUnderPreserve(t *testing.T) {
	snap := newTestSnapshot(t, drugFixture())
	db := newAppDB(t)
	drugGeneral := createGeneral(t, db, "metformin", types.GeneralConceptCategoryDrug)
	createManual(t, db, drugGeneral.ID, 100, true)
	otherGeneral := createGeneral(t, db, "Metformin exposure", "Condition")
	createManual(t, db, otherGeneral.ID, 100, true)

	enricher := NewEnricher(testLogger(t))
	if _, err := enricher.Run(context.Background(), snap, db, true); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := derivedTuples(t, db)
	if len(first) != 2 {
		t.Fatalf("expected one derived row per general concept, got %+v", first)
	}

	if _, err := enricher.Run(context.Background(), snap, db, true); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second := derivedTuples(t, db)
	if len(second) != len(first) {
		t.Fatalf("derived set changed size across runs: %+v vs %+v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("derived row %d changed across runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEnrichPreservesRecommendedAcrossRuns(t *testing.T) {
	snap := newTestSnapshot(t, drugFixture())
	db := newAppDB(t)
	general := createGeneral(t, db, "Metformin exposure", "Condition")
	createManual(t, db, general.ID, 100, true)

	enricher := NewEnricher(testLogger(t))
	first, err := enricher.Run(context.Background(), snap, db, false)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.InsertedRows != 1 {
		t.Fatalf("expected one derived row, got %+v", first)
	}
	rows := derivedRows(t, db)
	if rows[0].Recommended {
		t.Fatalf("expected unrecommended derived row, got %+v", rows[0])
	}

	// A curator endorses the derived row; the next full regeneration must
	// keep that endorsement.
	err = db.Model(&types.ConceptMapping{}).
		Where("id = ?", rows[0].ID).
		Update("recommended", true).Error
	if err != nil {
		t.Fatalf("endorse derived row: %v", err)
	}

	second, err := enricher.Run(context.Background(), snap, db, true)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.DeletedDerived != 1 || second.InsertedRows != 1 {
		t.Fatalf("expected full regeneration, got %+v", second)
	}
	rows = derivedRows(t, db)
	if len(rows) != 1 || !rows[0].Recommended {
		t.Fatalf("expected endorsement preserved, got %+v", rows)
	}
}
