package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"jobmail/internal/model"
	"jobmail/internal/service"
)

// OwnerKey 会话中间件写入 gin.Context 的 key
const OwnerKey = "owner_id"

type Authenticator interface {
	Link(ctx context.Context, token string) (*service.LinkResult, error)
	CheckUser(ctx context.Context, ownerID string) (bool, error)
}

type MailIngester interface {
	FetchAndIngest(ctx context.Context, token string) (*model.BatchReport, error)
	IngestLatest(ctx context.Context, token string, limit int) (*model.BatchReport, error)
	IngestEmails(ctx context.Context, ownerID string, emails map[string]service.EmailPayload) (*model.BatchReport, error)
	InsertLine(ctx context.Context, ownerID, line string) (model.ApplicationRecord, error)
}

type StatsReader interface {
	Get(ctx context.Context, ownerID string) (*model.Statistics, model.AppsByResult, error)
}

type Exporter interface {
	ExportCSV(ctx context.Context, ownerID string) (string, error)
}

// ownerOrSession body 里没有 owner 时退回到会话里的 owner
func ownerOrSession(c *gin.Context, owner string) string {
	if owner != "" {
		return owner
	}
	return c.GetString(OwnerKey)
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
