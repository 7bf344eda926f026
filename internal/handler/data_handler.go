package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/pkg/logger"
)

type DataHandler struct {
	stats    StatsReader
	exporter Exporter
	logger   *zap.Logger
}

func NewDataHandler(stats StatsReader, exporter Exporter, logger *zap.Logger) *DataHandler {
	return &DataHandler{stats: stats, exporter: exporter, logger: logger}
}

// GetData handles POST /get-data
func (h *DataHandler) GetData(c *gin.Context) {
	var req struct {
		UserID string `json:"userID"`
	}
	_ = c.ShouldBindJSON(&req)
	owner := ownerOrSession(c, req.UserID)
	if owner == "" {
		abortWithError(c, http.StatusBadRequest, "missing userID")
		return
	}

	stats, byResult, err := h.stats.Get(c.Request.Context(), owner)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "User statistics not found.")
			return
		}
		logger.WithTrace(c.Request.Context(), h.logger).Error("Get statistics failed", zap.String("owner_id", owner), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error retrieving user data.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apps_by_results": byResult,
		"statistics":      stats,
	})
}

// ExportData handles POST /export-data
func (h *DataHandler) ExportData(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	_ = c.ShouldBindJSON(&req)
	owner := ownerOrSession(c, req.Value)

	csv, err := h.exporter.ExportCSV(c.Request.Context(), owner)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"value": csv})
	case errors.Is(err, model.ErrUnknownOwner):
		abortWithError(c, http.StatusNotFound, "No user data found")
	case errors.Is(err, model.ErrNotFound):
		c.Status(http.StatusNoContent)
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Export failed", zap.String("owner_id", owner), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error fetching user applications.")
	}
}
