package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	mqcontracts "jobmail/contracts/mq"
	"jobmail/internal/model"
	"jobmail/pkg/logger"
	"jobmail/pkg/mq"
	"jobmail/pkg/util"
)

const handlerName = "stats"

// DefaultMaxRetries 超过后进入死信队列
const DefaultMaxRetries = 3

type Recomputer interface {
	Recompute(ctx context.Context, ownerID string) (model.Statistics, model.AppsByResult, error)
}

type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// ApplicationRecordedHandler 收到 application.recorded 后重算该用户的统计读模型
type ApplicationRecordedHandler struct {
	stats      Recomputer
	retries    RetryTracker
	maxRetries int64
	logger     *zap.Logger
}

func NewApplicationRecordedHandler(stats Recomputer, retries RetryTracker, maxRetries int64, logger *zap.Logger) *ApplicationRecordedHandler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &ApplicationRecordedHandler{
		stats:      stats,
		retries:    retries,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (h *ApplicationRecordedHandler) Handle(ctx context.Context, raw []byte) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.ApplicationRecordedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal application.recorded payload", zap.Error(err))
		return fmt.Errorf("%w: %w", mq.ErrDeadLetter, err)
	}
	if p.OwnerID == "" {
		log.Error("application.recorded without owner", zap.Int64("app_id", p.AppID))
		return fmt.Errorf("%w: empty owner id", mq.ErrDeadLetter)
	}

	retryKey := util.FormatRetryKey(handlerName, p.OwnerID+":"+strconv.FormatInt(p.AppID, 10))

	stats, _, err := h.stats.Recompute(ctx, p.OwnerID)
	if err != nil {
		return h.handleError(ctx, log, retryKey, err)
	}

	if err := h.retries.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(err))
	}

	log.Info("Statistics recomputed",
		zap.String("owner_id", p.OwnerID),
		zap.Int64("app_id", p.AppID),
		zap.Int("total_apps", stats.TotalApps),
		zap.Float64("pass_rate", stats.PassRate),
	)
	return nil
}

// handleError 可重试且未超过预算时返回原错误（nack 重新入队），否则进入死信队列
func (h *ApplicationRecordedHandler) handleError(ctx context.Context, log *zap.Logger, retryKey string, err error) error {
	retryable, errType := util.IsRetryableError(err)

	count, cerr := h.retries.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		log.Warn("Failed to increment retry counter", zap.String("key", retryKey), zap.Error(cerr))
	}

	log.Error("Statistics recompute failed",
		zap.String("error_type", errType),
		zap.Bool("retryable", retryable),
		zap.Int64("retry", count),
		zap.Error(err),
	)

	if util.ShouldRetry(count, h.maxRetries, retryable) {
		return err
	}

	if rerr := h.retries.Reset(ctx, retryKey); rerr != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(rerr))
	}
	return fmt.Errorf("%w: %s: %w", mq.ErrDeadLetter, errType, err)
}
