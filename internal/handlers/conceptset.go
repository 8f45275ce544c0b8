package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/phenolab/termhub-backend/internal/logger"
	pkgerrors "github.com/phenolab/termhub-backend/internal/pkg/errors"
	"github.com/phenolab/termhub-backend/internal/services"
	"github.com/phenolab/termhub-backend/internal/types"
)

type ConceptSetHandler struct {
	log               *logger.Logger
	conceptSetService services.ConceptSetService
}

func NewConceptSetHandler(log *logger.Logger, conceptSetService services.ConceptSetService) *ConceptSetHandler {
	return &ConceptSetHandler{
		log:               log.With("handler", "ConceptSetHandler"),
		conceptSetService: conceptSetService,
	}
}

type createConceptSetRequest struct {
	Name  string `json:"name"`
	Items []struct {
		ConceptID          int64 `json:"concept_id"`
		Excluded           bool  `json:"excluded"`
		IncludeDescendants bool  `json:"include_descendants"`
		IncludeMapped      bool  `json:"include_mapped"`
	} `json:"items"`
}

func (h *ConceptSetHandler) Create(c *gin.Context) {
	var req createConceptSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	items := make([]types.ConceptSetItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, types.ConceptSetItem{
			ConceptID:          it.ConceptID,
			Excluded:           it.Excluded,
			IncludeDescendants: it.IncludeDescendants,
			IncludeMapped:      it.IncludeMapped,
		})
	}
	set, err := h.conceptSetService.Create(c.Request.Context(), req.Name, items)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
			return
		}
		h.log.Error("Create concept set failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "create_concept_set_failed", err)
		return
	}
	RespondOK(c, gin.H{"concept_set": set})
}

func (h *ConceptSetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_concept_set_id", err)
		return
	}
	set, items, err := h.conceptSetService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "concept_set_not_found", err)
			return
		}
		h.log.Error("Get concept set failed", "error", err, "concept_set_id", id)
		RespondError(c, http.StatusInternalServerError, "get_concept_set_failed", err)
		return
	}
	RespondOK(c, gin.H{"concept_set": set, "items": items})
}

func (h *ConceptSetHandler) List(c *gin.Context) {
	sets, err := h.conceptSetService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List concept sets failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_concept_sets_failed", err)
		return
	}
	RespondOK(c, gin.H{"concept_sets": sets})
}

func (h *ConceptSetHandler) Optimize(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_concept_set_id", err)
		return
	}
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	result, err := h.conceptSetService.Optimize(c.Request.Context(), id, dryRun)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "concept_set_not_found", err)
			return
		}
		h.log.Error("Optimize failed", "error", err, "concept_set_id", id)
		RespondError(c, http.StatusInternalServerError, "optimize_failed", err)
		return
	}
	RespondOK(c, result)
}

func (h *ConceptSetHandler) Runs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_concept_set_id", err)
		return
	}
	runs, err := h.conceptSetService.Runs(c.Request.Context(), id)
	if err != nil {
		h.log.Error("List optimization runs failed", "error", err, "concept_set_id", id)
		RespondError(c, http.StatusInternalServerError, "list_runs_failed", err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}
