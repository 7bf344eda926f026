package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/internal/service"
	"jobmail/pkg/logger"
)

type IngestHandler struct {
	ingest MailIngester
	logger *zap.Logger
}

func NewIngestHandler(ingest MailIngester, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger}
}

// FetchEmail handles POST /fetch-email
func (h *IngestHandler) FetchEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		abortWithError(c, http.StatusBadRequest, "Invalid token")
		return
	}

	report, err := h.ingest.FetchAndIngest(c.Request.Context(), req.Token)
	if err != nil {
		h.fetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// UpdateEmail handles POST /update-email
func (h *IngestHandler) UpdateEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		abortWithError(c, http.StatusBadRequest, "Invalid token")
		return
	}

	report, err := h.ingest.IngestLatest(c.Request.Context(), req.Token, req.Limit)
	if err != nil {
		h.fetchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (h *IngestHandler) fetchError(c *gin.Context, err error) {
	log := logger.WithTrace(c.Request.Context(), h.logger)
	if errors.Is(err, model.ErrCredential) {
		log.Warn("Mail fetch rejected credential", zap.Error(err))
		abortWithError(c, http.StatusBadRequest, "Invalid token")
		return
	}
	log.Error("Mail fetch failed", zap.Error(err))
	abortWithError(c, http.StatusInternalServerError, "Error processing emails")
}

// EmailRoute handles POST /email-route
func (h *IngestHandler) EmailRoute(c *gin.Context) {
	var req struct {
		Emails map[string]service.EmailPayload `json:"emails"`
		UserID string                          `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Emails == nil {
		abortWithError(c, http.StatusBadRequest, "Invalid email data format")
		return
	}

	report, err := h.ingest.IngestEmails(c.Request.Context(), ownerOrSession(c, req.UserID), req.Emails)
	if err != nil {
		if errors.Is(err, model.ErrUnknownOwner) {
			abortWithError(c, http.StatusBadRequest, "Invalid user")
			return
		}
		logger.WithTrace(c.Request.Context(), h.logger).Error("Email route failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// InsertData handles POST /insert-data
func (h *IngestHandler) InsertData(c *gin.Context) {
	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request")
		return
	}

	rec, err := h.ingest.InsertLine(c.Request.Context(), ownerOrSession(c, req.UserID), req.Message)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrUnknownOwner):
		abortWithError(c, http.StatusBadRequest, "Invalid user")
		return
	case errors.Is(err, model.ErrParse):
		abortWithError(c, http.StatusBadRequest, "Invalid application format")
		return
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Insert application failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error inserting application")
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": rec})
}
