package vocab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/types"
)

// enrichmentVocabularies are the only source vocabularies that derived
// mappings are propagated from.
var enrichmentVocabularies = []string{"RxNorm", "RxNorm Extension", "LOINC", "SNOMED", "ICD10"}

const (
	classIngredient       = "Ingredient"
	classClinicalDrug     = "Clinical Drug"
	classClinicalDrugComp = "Clinical Drug Comp"
	domainDrug            = "Drug"
)

type EnrichStats struct {
	DeletedDerived    int64 `json:"deleted_derived"`
	PropagatedRows    int   `json:"propagated_rows"`
	DrugExpansionRows int   `json:"drug_expansion_rows"`
	InsertedRows      int   `json:"inserted_rows"`
}

// Enricher regenerates the derived partition of the mapping table by
// propagating recommended manual mappings through relationship and
// ancestry edges, plus the drug ingredient→component→clinical-drug path.
// Callers must run it inside one transaction: the delete+regenerate
// sequence is a single all-or-nothing boundary.
type Enricher struct {
	log *logger.Logger
}

func NewEnricher(baseLog *logger.Logger) *Enricher {
	return &Enricher{log: baseLog.With("component", "MappingEnrichmentEngine")}
}

type mappingKey struct {
	generalConceptID uuid.UUID
	conceptID        int64
}

// Run executes a full enrichment over tx. Unlike the read paths this
// fails fast without a snapshot: silently writing an empty derived set
// would be indistinguishable from "nothing to add".
func (e *Enricher) Run(ctx context.Context, snap *Snapshot, tx *gorm.DB, preserveRecommended bool) (*EnrichStats, error) {
	if snap == nil {
		return nil, pkgerrors.ErrEnrichmentPrecondition
	}
	stats := &EnrichStats{}

	// 1. Snapshot the currently recommended derived targets before they
	// are wiped.
	preserved := map[mappingKey]bool{}
	if preserveRecommended {
		var rows []types.ConceptMapping
		err := tx.WithContext(ctx).
			Where("source = ? AND recommended = ?", types.MappingSourceDerived, true).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load recommended derived mappings: %w", err)
		}
		for _, row := range rows {
			preserved[mappingKey{row.GeneralConceptID, row.ConceptID}] = true
		}
	}

	// 2. The derived partition is wholly owned here: delete it all.
	res := tx.WithContext(ctx).
		Where("source = ?", types.MappingSourceDerived).
		Delete(&types.ConceptMapping{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete derived mappings: %w", res.Error)
	}
	stats.DeletedDerived = res.RowsAffected

	retained := map[mappingKey]types.ConceptMapping{}
	var order []mappingKey

	// 3. Propagate each recommended manual mapping.
	var manuals []types.ConceptMapping
	err := tx.WithContext(ctx).
		Where("source = ? AND recommended = ?", types.MappingSourceManual, true).
		Find(&manuals).Error
	if err != nil {
		return nil, fmt.Errorf("load manual mappings: %w", err)
	}
	for _, manual := range manuals {
		candidates, err := e.propagate(ctx, snap, manual.ConceptID)
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			key := mappingKey{manual.GeneralConceptID, cand.ConceptID}
			if _, ok := retained[key]; ok {
				continue
			}
			retained[key] = types.ConceptMapping{
				ID:               uuid.New(),
				GeneralConceptID: manual.GeneralConceptID,
				ConceptID:        cand.ConceptID,
				UnitConceptID:    manual.UnitConceptID,
				Recommended:      preserveRecommended && preserved[key],
				Source:           types.MappingSourceDerived,
				CreatedAt:        time.Now().UTC(),
			}
			order = append(order, key)
			stats.PropagatedRows++
		}
	}

	// 4. Drug-hierarchy expansion, independent of step 3. Its results are
	// authoritative: a colliding propagated row is replaced.
	var drugGenerals []types.GeneralConcept
	err = tx.WithContext(ctx).
		Where("category = ?", types.GeneralConceptCategoryDrug).
		Find(&drugGenerals).Error
	if err != nil {
		return nil, fmt.Errorf("load drug general concepts: %w", err)
	}
	for _, general := range drugGenerals {
		drugs, err := e.expandDrug(ctx, snap, general.Name)
		if err != nil {
			return nil, err
		}
		for _, drug := range drugs {
			key := mappingKey{general.ID, drug.ConceptID}
			if _, ok := retained[key]; !ok {
				order = append(order, key)
			}
			retained[key] = types.ConceptMapping{
				ID:               uuid.New(),
				GeneralConceptID: general.ID,
				ConceptID:        drug.ConceptID,
				UnitConceptID:    general.UnitConceptID,
				Recommended:      true,
				Source:           types.MappingSourceDerived,
				CreatedAt:        time.Now().UTC(),
			}
			stats.DrugExpansionRows++
		}
	}

	// 5. Append everything retained in a stable order.
	rows := make([]types.ConceptMapping, 0, len(order))
	for _, key := range order {
		rows = append(rows, retained[key])
	}
	if len(rows) > 0 {
		if err := tx.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return nil, fmt.Errorf("insert derived mappings: %w", err)
		}
	}
	stats.InsertedRows = len(rows)
	e.log.Info("Mapping enrichment complete",
		"deleted", stats.DeletedDerived,
		"propagated", stats.PropagatedRows,
		"drug_expansion", stats.DrugExpansionRows,
		"inserted", stats.InsertedRows,
	)
	return stats, nil
}

// propagate collects the candidate concepts for one manual mapping: the
// Maps to / Mapped from neighbors plus the full descendant closure of the
// source, restricted to the source's vocabulary and valid concepts. Drug
// domain candidates are further restricted to Clinical Drug.
func (e *Enricher) propagate(ctx context.Context, snap *Snapshot, sourceConceptID int64) ([]types.Concept, error) {
	var source types.Concept
	err := snap.DB().WithContext(ctx).
		Where("concept_id = ?", sourceConceptID).
		Limit(1).
		Find(&source).Error
	if err != nil {
		return nil, fmt.Errorf("load source concept %d: %w", sourceConceptID, err)
	}
	if source.ConceptID == 0 {
		return nil, nil
	}
	allowed := false
	for _, v := range enrichmentVocabularies {
		if source.VocabularyID == v {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil
	}

	var mapped []types.Concept
	err = snap.DB().WithContext(ctx).
		Table("concept_relationship AS cr").
		Select("c.*").
		Joins("JOIN concept c ON c.concept_id = cr.concept_id_2").
		Where("cr.concept_id_1 = ?", sourceConceptID).
		Where("cr.relationship_id IN ?", []string{"Maps to", "Mapped from"}).
		Scan(&mapped).Error
	if err != nil {
		return nil, fmt.Errorf("mapped candidates for %d: %w", sourceConceptID, err)
	}

	var descendants []types.Concept
	err = snap.DB().WithContext(ctx).
		Table("concept_ancestor AS ca").
		Select("c.*").
		Joins("JOIN concept c ON c.concept_id = ca.descendant_concept_id").
		Where("ca.ancestor_concept_id = ?", sourceConceptID).
		Where("ca.descendant_concept_id <> ca.ancestor_concept_id").
		Scan(&descendants).Error
	if err != nil {
		return nil, fmt.Errorf("descendant candidates for %d: %w", sourceConceptID, err)
	}

	var out []types.Concept
	for _, cand := range append(mapped, descendants...) {
		if cand.VocabularyID != source.VocabularyID || !cand.Valid() {
			continue
		}
		if cand.DomainID == domainDrug && cand.ConceptClassID != classClinicalDrug {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// expandDrug walks ingredient name match → Clinical Drug Components via
// the has-ingredient edge backward → Clinical Drugs via Constitutes.
func (e *Enricher) expandDrug(ctx context.Context, snap *Snapshot, generalName string) ([]types.Concept, error) {
	name := strings.TrimSpace(generalName)
	if name == "" {
		return nil, nil
	}
	var ingredients []types.Concept
	err := snap.DB().WithContext(ctx).
		Where("vocabulary_id IN ?", []string{"RxNorm", "RxNorm Extension"}).
		Where("concept_class_id = ?", classIngredient).
		Where("LOWER(concept_name) = LOWER(?)", name).
		Find(&ingredients).Error
	if err != nil {
		return nil, fmt.Errorf("ingredient lookup %q: %w", name, err)
	}
	if len(ingredients) == 0 {
		return nil, nil
	}
	ingredientIDs := make([]int64, 0, len(ingredients))
	for _, ing := range ingredients {
		ingredientIDs = append(ingredientIDs, ing.ConceptID)
	}

	var components []types.Concept
	err = snap.DB().WithContext(ctx).
		Table("concept_relationship AS cr").
		Select("c.*").
		Joins("JOIN concept c ON c.concept_id = cr.concept_id_1").
		Where("cr.concept_id_2 IN ?", ingredientIDs).
		Where("cr.relationship_id = ?", "RxNorm has ing").
		Where("c.concept_class_id = ?", classClinicalDrugComp).
		Scan(&components).Error
	if err != nil {
		return nil, fmt.Errorf("drug components for %q: %w", name, err)
	}
	if len(components) == 0 {
		return nil, nil
	}
	componentIDs := make([]int64, 0, len(components))
	for _, comp := range components {
		componentIDs = append(componentIDs, comp.ConceptID)
	}

	var drugs []types.Concept
	err = snap.DB().WithContext(ctx).
		Table("concept_relationship AS cr").
		Select("c.*").
		Joins("JOIN concept c ON c.concept_id = cr.concept_id_2").
		Where("cr.concept_id_1 IN ?", componentIDs).
		Where("cr.relationship_id = ?", "Constitutes").
		Where("c.concept_class_id = ?", classClinicalDrug).
		Where("c.invalid_reason IS NULL OR c.invalid_reason = ''").
		Scan(&drugs).Error
	if err != nil {
		return nil, fmt.Errorf("clinical drugs for %q: %w", name, err)
	}
	return drugs, nil
}
