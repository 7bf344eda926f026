package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SETNX 的幂等去重
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(ownerID, messageID string) string {
	return fmt.Sprintf("dedup:message:%s:%s", ownerID, messageID)
}

// AcquireOnce tries to acquire a dedup lock for owner + messageID.
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, ownerID, messageID string) bool {
	key := dedupKey(ownerID, messageID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("owner_id", ownerID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated message",
			zap.String("owner_id", ownerID),
			zap.String("message_id", messageID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release 释放去重锁，失败的邮件可以在下一批次重新处理
func (d *Deduper) Release(ctx context.Context, ownerID, messageID string) {
	if err := d.rdb.Del(ctx, dedupKey(ownerID, messageID)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("owner_id", ownerID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
