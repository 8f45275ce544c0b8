package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/repos"
	"github.com/phenolab/termhub-backend/internal/services"
	"github.com/phenolab/termhub-backend/internal/types"
)

type MappingHandler struct {
	log               *logger.Logger
	enrichmentService services.EnrichmentService
	generalRepo       repos.GeneralConceptRepo
	mappingRepo       repos.MappingRepo
}

func NewMappingHandler(
	log *logger.Logger,
	enrichmentService services.EnrichmentService,
	generalRepo repos.GeneralConceptRepo,
	mappingRepo repos.MappingRepo,
) *MappingHandler {
	return &MappingHandler{
		log:               log.With("handler", "MappingHandler"),
		enrichmentService: enrichmentService,
		generalRepo:       generalRepo,
		mappingRepo:       mappingRepo,
	}
}

func (h *MappingHandler) ListGeneralConcepts(c *gin.Context) {
	generals, err := h.generalRepo.List(c.Request.Context(), nil)
	if err != nil {
		h.log.Error("List general concepts failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_general_concepts_failed", err)
		return
	}
	RespondOK(c, gin.H{"general_concepts": generals})
}

type createGeneralConceptRequest struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	UnitConceptID *int64 `json:"unit_concept_id"`
}

func (h *MappingHandler) CreateGeneralConcept(c *gin.Context) {
	var req createGeneralConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Name == "" {
		RespondError(c, http.StatusBadRequest, "invalid_argument", pkgerrors.ErrInvalidArgument)
		return
	}
	general := &types.GeneralConcept{
		Name:          req.Name,
		Category:      req.Category,
		UnitConceptID: req.UnitConceptID,
	}
	if err := h.generalRepo.Create(c.Request.Context(), nil, general); err != nil {
		h.log.Error("Create general concept failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "create_general_concept_failed", err)
		return
	}
	RespondOK(c, gin.H{"general_concept": general})
}

func (h *MappingHandler) ListMappings(c *gin.Context) {
	generalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_general_concept_id", err)
		return
	}
	general, err := h.generalRepo.GetByID(c.Request.Context(), nil, generalID)
	if err != nil {
		h.log.Error("Load general concept failed", "error", err, "general_concept_id", generalID)
		RespondError(c, http.StatusInternalServerError, "list_mappings_failed", err)
		return
	}
	if general == nil {
		RespondError(c, http.StatusNotFound, "general_concept_not_found", pkgerrors.ErrNotFound)
		return
	}
	mappings, err := h.mappingRepo.ListByGeneralConcept(c.Request.Context(), nil, generalID)
	if err != nil {
		h.log.Error("List mappings failed", "error", err, "general_concept_id", generalID)
		RespondError(c, http.StatusInternalServerError, "list_mappings_failed", err)
		return
	}
	RespondOK(c, gin.H{"mappings": mappings})
}

type createMappingRequest struct {
	ConceptID     int64  `json:"concept_id"`
	UnitConceptID *int64 `json:"unit_concept_id"`
	Recommended   bool   `json:"recommended"`
}

func (h *MappingHandler) CreateMapping(c *gin.Context) {
	generalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_general_concept_id", err)
		return
	}
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	general, err := h.generalRepo.GetByID(c.Request.Context(), nil, generalID)
	if err != nil {
		h.log.Error("Load general concept failed", "error", err, "general_concept_id", generalID)
		RespondError(c, http.StatusInternalServerError, "create_mapping_failed", err)
		return
	}
	if general == nil {
		RespondError(c, http.StatusNotFound, "general_concept_not_found", pkgerrors.ErrNotFound)
		return
	}
	mapping := &types.ConceptMapping{
		GeneralConceptID: generalID,
		ConceptID:        req.ConceptID,
		UnitConceptID:    req.UnitConceptID,
		Recommended:      req.Recommended,
	}
	if err := h.mappingRepo.CreateManual(c.Request.Context(), nil, mapping); err != nil {
		h.log.Error("Create mapping failed", "error", err, "general_concept_id", generalID)
		RespondError(c, http.StatusInternalServerError, "create_mapping_failed", err)
		return
	}
	RespondOK(c, gin.H{"mapping": mapping})
}

func (h *MappingHandler) Enrich(c *gin.Context) {
	preserve, _ := strconv.ParseBool(c.DefaultQuery("preserveRecommended", "true"))
	stats, err := h.enrichmentService.Run(c.Request.Context(), preserve)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrEnrichmentPrecondition) {
			RespondError(c, http.StatusConflict, "enrichment_precondition", err)
			return
		}
		h.log.Error("Enrichment failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "enrichment_failed", err)
		return
	}
	manualTotal, err := h.mappingRepo.CountBySource(c.Request.Context(), nil, types.MappingSourceManual)
	if err != nil {
		h.log.Warn("Counting manual mappings failed", "error", err)
	}
	RespondOK(c, gin.H{"stats": stats, "manual_total": manualTotal})
}
