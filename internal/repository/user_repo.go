package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository users 表，client_id 为 People API 返回的用户 ID
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Exists reports whether the owner is known.
func (r *UserRepository) Exists(ctx context.Context, ownerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE client_id = $1)`, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// Ensure 不存在时插入，返回是否新建
func (r *UserRepository) Ensure(ctx context.Context, ownerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO users (client_id, created_at)
        VALUES ($1, NOW())
        ON CONFLICT (client_id) DO NOTHING
    `, ownerID)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
