package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/services"
)

type VocabStatusHandler struct {
	log       *logger.Logger
	snapshots services.SnapshotService
}

func NewVocabStatusHandler(log *logger.Logger, snapshots services.SnapshotService) *VocabStatusHandler {
	return &VocabStatusHandler{
		log:       log.With("handler", "VocabStatusHandler"),
		snapshots: snapshots,
	}
}

func (h *VocabStatusHandler) Status(c *gin.Context) {
	RespondOK(c, h.snapshots.Status(c.Request.Context()))
}
