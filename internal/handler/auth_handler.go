package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobmail/pkg/logger"
)

type AuthHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

func NewAuthHandler(auth Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// AuthServer handles POST /auth-server
func (h *AuthHandler) AuthServer(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		abortWithError(c, http.StatusBadRequest, "Invalid access token.")
		return
	}

	res, err := h.auth.Link(c.Request.Context(), req.Token)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Link account failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error checking user")
		return
	}

	status := "exists"
	if res.Created {
		status = "created"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"owner_id":      res.OwnerID,
		"session_token": res.SessionToken,
	})
}

// CheckUser handles POST /check-user
func (h *AuthHandler) CheckUser(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == "" {
		abortWithError(c, http.StatusBadRequest, "missing clientID")
		return
	}

	created, err := h.auth.CheckUser(c.Request.Context(), req.Value)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Check user failed", zap.String("owner_id", req.Value), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error checking clientID.")
		return
	}

	if created {
		c.String(http.StatusOK, "ClientID %s created.", req.Value)
		return
	}
	c.String(http.StatusOK, "User with clientID %s exists.", req.Value)
}
