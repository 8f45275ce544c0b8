package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/services"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

type HierarchyHandler struct {
	log              *logger.Logger
	hierarchyService services.HierarchyService
}

func NewHierarchyHandler(log *logger.Logger, hierarchyService services.HierarchyService) *HierarchyHandler {
	return &HierarchyHandler{
		log:              log.With("handler", "HierarchyHandler"),
		hierarchyService: hierarchyService,
	}
}

func (h *HierarchyHandler) Graph(c *gin.Context) {
	conceptID, ok := conceptIDParam(c)
	if !ok {
		return
	}
	up := vocab.DefaultMaxLevels
	down := vocab.DefaultMaxLevels
	if raw := c.Query("up"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_up", err)
			return
		}
		up = v
	}
	if raw := c.Query("down"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_down", err)
			return
		}
		down = v
	}
	graph, err := h.hierarchyService.Graph(c.Request.Context(), conceptID, up, down)
	if err != nil {
		h.log.Error("Hierarchy graph failed", "error", err, "concept_id", conceptID)
		RespondError(c, http.StatusInternalServerError, "hierarchy_graph_failed", err)
		return
	}
	RespondOK(c, graph)
}
