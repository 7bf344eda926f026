package service

import (
	"context"
	"time"

	"jobmail/internal/model"
)

// UserStore 由 repository.UserRepository 实现
type UserStore interface {
	Exists(ctx context.Context, ownerID string) (bool, error)
	Ensure(ctx context.Context, ownerID string) (bool, error)
}

// MailFetcher 由 gmail.Client 实现
type MailFetcher interface {
	ResolveOwner(ctx context.Context, token string) (string, error)
	FetchSince(ctx context.Context, token string, since time.Time) ([]model.RawMessage, error)
	FetchYesterday(ctx context.Context, token string) ([]model.RawMessage, error)
	FetchLatest(ctx context.Context, token string, limit int64) ([]model.RawMessage, error)
}

// Ingester 由 pipeline.Pipeline 实现
type Ingester interface {
	Ingest(ctx context.Context, ownerID string, msgs []model.RawMessage) *model.BatchReport
}

// ApplicationStore 由 repository.ApplicationRepository 实现
type ApplicationStore interface {
	InsertApplication(ctx context.Context, rec model.ApplicationRecord) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Application, error)
	ListResults(ctx context.Context, ownerID string) ([]string, error)
}

// StatisticsStore 由 repository.StatisticsRepository 实现
type StatisticsStore interface {
	Upsert(ctx context.Context, stats model.Statistics, byResult model.AppsByResult) error
	Get(ctx context.Context, ownerID string) (*model.Statistics, model.AppsByResult, error)
}
