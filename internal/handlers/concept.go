package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/services"
)

type ConceptHandler struct {
	log            *logger.Logger
	conceptService services.ConceptService
}

func NewConceptHandler(log *logger.Logger, conceptService services.ConceptService) *ConceptHandler {
	return &ConceptHandler{
		log:            log.With("handler", "ConceptHandler"),
		conceptService: conceptService,
	}
}

func conceptIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return 0, false
	}
	return id, true
}

func (h *ConceptHandler) Related(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	standardOnly, _ := strconv.ParseBool(c.DefaultQuery("standard", "false"))
	rows, err := h.conceptService.Related(c.Request.Context(), conceptID, standardOnly)
	if err != nil {
		h.log.Error("Related failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "related_failed", err)
		return
	}
	RespondOK(c, gin.H{"concepts": rows})
}

func (h *ConceptHandler) Descendants(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	rows, err := h.conceptService.Descendants(c.Request.Context(), conceptID)
	if err != nil {
		h.log.Error("Descendants failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "descendants_failed", err)
		return
	}
	RespondOK(c, gin.H{"concepts": rows})
}

func (h *ConceptHandler) HierarchyNeighbors(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	rows, err := h.conceptService.HierarchyNeighbors(c.Request.Context(), conceptID)
	if err != nil {
		h.log.Error("HierarchyNeighbors failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "hierarchy_neighbors_failed", err)
		return
	}
	RespondOK(c, gin.H{"concepts": rows})
}

func (h *ConceptHandler) Synonyms(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	rows, err := h.conceptService.Synonyms(c.Request.Context(), conceptID)
	if err != nil {
		h.log.Error("Synonyms failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "synonyms_failed", err)
		return
	}
	RespondOK(c, gin.H{"synonyms": rows})
}

func (h *ConceptHandler) RecommendationPool(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	generalID := uuid.Nil
	if raw := c.Query("general"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_general_concept_id", err)
			return
		}
		generalID = parsed
	}
	rows, err := h.conceptService.RecommendationPool(c.Request.Context(), conceptID, generalID)
	if err != nil {
		h.log.Error("RecommendationPool failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "recommendation_pool_failed", err)
		return
	}
	RespondOK(c, gin.H{"concepts": rows})
}
