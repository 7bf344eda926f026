package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobmail/internal/model"
	"jobmail/internal/parser"
	"jobmail/pkg/logger"
)

const (
	DefaultUpdateLimit = 20
	MaxUpdateLimit     = 100
)

// EmailPayload /email-route 中单封邮件的结构
type EmailPayload struct {
	To      string `json:"To"`
	From    string `json:"From"`
	Message string `json:"Message"`
}

type IngestService struct {
	fetcher  MailFetcher
	users    UserStore
	pipeline Ingester
	apps     ApplicationStore
	logger   *zap.Logger
}

func NewIngestService(fetcher MailFetcher, users UserStore, pipeline Ingester, apps ApplicationStore, logger *zap.Logger) *IngestService {
	return &IngestService{
		fetcher:  fetcher,
		users:    users,
		pipeline: pipeline,
		apps:     apps,
		logger:   logger,
	}
}

// FetchAndIngest 拉取昨天之后的邮件并处理。凭证和拉取失败直接返回错误，单封邮件的失败只体现在报告中。
func (s *IngestService) FetchAndIngest(ctx context.Context, token string) (*model.BatchReport, error) {
	ownerID, err := s.linkedOwner(ctx, token)
	if err != nil {
		return nil, err
	}
	msgs, err := s.fetcher.FetchYesterday(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, ownerID, msgs), nil
}

// IngestSince 拉取 since 当天之后的邮件并处理
func (s *IngestService) IngestSince(ctx context.Context, token string, since time.Time) (*model.BatchReport, error) {
	ownerID, err := s.linkedOwner(ctx, token)
	if err != nil {
		return nil, err
	}
	msgs, err := s.fetcher.FetchSince(ctx, token, since)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, ownerID, msgs), nil
}

// IngestLatest 拉取最新的 limit 封邮件并处理
func (s *IngestService) IngestLatest(ctx context.Context, token string, limit int) (*model.BatchReport, error) {
	ownerID, err := s.linkedOwner(ctx, token)
	if err != nil {
		return nil, err
	}
	msgs, err := s.fetcher.FetchLatest(ctx, token, int64(ClampLimit(limit)))
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, ownerID, msgs), nil
}

// ClampLimit 0 或负数取默认值，超过上限取上限
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultUpdateLimit
	}
	if limit > MaxUpdateLimit {
		return MaxUpdateLimit
	}
	return limit
}

// linkedOwner token 已由 Google 验证身份，不存在的用户直接创建
func (s *IngestService) linkedOwner(ctx context.Context, token string) (string, error) {
	ownerID, err := s.fetcher.ResolveOwner(ctx, token)
	if err != nil {
		return "", err
	}
	if _, err := s.users.Ensure(ctx, ownerID); err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}
	return ownerID, nil
}

// IngestEmails 处理扩展端直接提交的邮件，ownerID 必须已存在
func (s *IngestService) IngestEmails(ctx context.Context, ownerID string, emails map[string]EmailPayload) (*model.BatchReport, error) {
	if err := s.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(emails))
	for id := range emails {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	msgs := make([]model.RawMessage, 0, len(ids))
	for _, id := range ids {
		e := emails[id]
		msgs = append(msgs, model.RawMessage{ID: id, Recipient: e.To, Sender: e.From, RawBody: e.Message})
	}
	return s.pipeline.Ingest(ctx, ownerID, msgs), nil
}

// InsertLine 解析一行抽取结果并写入
func (s *IngestService) InsertLine(ctx context.Context, ownerID, line string) (model.ApplicationRecord, error) {
	if err := s.requireOwner(ctx, ownerID); err != nil {
		return model.ApplicationRecord{}, err
	}

	fields, err := parser.Parse(line)
	if err != nil {
		return model.ApplicationRecord{}, err
	}

	rec := model.ApplicationRecord{OwnerID: ownerID, ApplicationFields: fields}
	if err := s.apps.InsertApplication(ctx, rec); err != nil {
		return model.ApplicationRecord{}, err
	}

	logger.WithTrace(ctx, s.logger).Info("Application inserted",
		zap.String("owner_id", ownerID),
		zap.String("company", fields.Company),
	)
	return rec, nil
}

func (s *IngestService) requireOwner(ctx context.Context, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: empty owner id", model.ErrUnknownOwner)
	}
	ok, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownOwner, ownerID)
	}
	return nil
}
