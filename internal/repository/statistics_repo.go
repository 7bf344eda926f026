package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmail/internal/model"
)

// StatisticsRepository statistics 和 apps_by_result 两张读模型表
type StatisticsRepository struct {
	db *pgxpool.Pool
}

func NewStatisticsRepository(db *pgxpool.Pool) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Upsert 在一个事务中覆盖两张表中该用户的行
func (r *StatisticsRepository) Upsert(ctx context.Context, stats model.Statistics, byResult model.AppsByResult) error {
	payload, err := json.Marshal(byResult)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO statistics (client_id, total_apps, total_pending_apps, pass_rate, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (client_id) DO UPDATE
        SET total_apps = EXCLUDED.total_apps,
            total_pending_apps = EXCLUDED.total_pending_apps,
            pass_rate = EXCLUDED.pass_rate,
            updated_at = NOW()
    `, stats.OwnerID, stats.TotalApps, stats.TotalPendingApps, stats.PassRate)
	if err != nil {
		return fmt.Errorf("upsert statistics: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO apps_by_result (client_id, apps_by_company, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (client_id) DO UPDATE
        SET apps_by_company = EXCLUDED.apps_by_company,
            updated_at = NOW()
    `, stats.OwnerID, payload)
	if err != nil {
		return fmt.Errorf("upsert apps_by_result: %w", err)
	}

	return tx.Commit(ctx)
}

// Get 任一张表缺少该用户时返回 model.ErrNotFound
func (r *StatisticsRepository) Get(ctx context.Context, ownerID string) (*model.Statistics, model.AppsByResult, error) {
	var (
		s       model.Statistics
		payload []byte
	)
	err := r.db.QueryRow(ctx, `
        SELECT s.client_id, s.total_apps, s.total_pending_apps, s.pass_rate, s.updated_at, a.apps_by_company
        FROM statistics s
        JOIN apps_by_result a ON a.client_id = s.client_id
        WHERE s.client_id = $1
    `, ownerID).Scan(&s.OwnerID, &s.TotalApps, &s.TotalPendingApps, &s.PassRate, &s.UpdatedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("statistics for %s: %w", ownerID, model.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("get statistics: %w", err)
	}

	byResult := model.AppsByResult{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &byResult); err != nil {
			return nil, nil, fmt.Errorf("decode apps_by_result: %w", err)
		}
	}
	return &s, byResult, nil
}
