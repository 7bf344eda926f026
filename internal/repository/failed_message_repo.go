package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobmail/internal/model"
)

// FailedMessage failed_messages 中的一行
type FailedMessage struct {
	OwnerID      string    `json:"owner_id"`
	MessageID    string    `json:"message_id"`
	State        string    `json:"state"`
	Reason       string    `json:"reason"`
	ErrorMessage string    `json:"error_message"`
	Attempts     int       `json:"attempts"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FailedMessageRepository 记录处理失败的邮件，同一封邮件重复失败时累加 attempts
type FailedMessageRepository struct {
	db *pgxpool.Pool
}

func NewFailedMessageRepository(db *pgxpool.Pool) *FailedMessageRepository {
	return &FailedMessageRepository{db: db}
}

func (r *FailedMessageRepository) RecordFailure(ctx context.Context, ownerID string, o model.MessageOutcome) error {
	errMsg := o.Error
	if errMsg == "" && o.Err != nil {
		errMsg = o.Err.Error()
	}

	_, err := r.db.Exec(ctx, `
        INSERT INTO failed_messages (client_id, message_id, state, reason, error_message, attempts, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
        ON CONFLICT (client_id, message_id) DO UPDATE
        SET state = EXCLUDED.state,
            reason = EXCLUDED.reason,
            error_message = EXCLUDED.error_message,
            attempts = failed_messages.attempts + 1,
            updated_at = NOW()
    `, ownerID, o.MessageID, string(o.State), o.Reason, errMsg)
	if err != nil {
		return fmt.Errorf("record failed message: %w", err)
	}
	return nil
}

// ListByOwner 最近失败的邮件
func (r *FailedMessageRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]FailedMessage, error) {
	rows, err := r.db.Query(ctx, `
        SELECT client_id, message_id, state, reason, error_message, attempts, updated_at
        FROM failed_messages
        WHERE client_id = $1
        ORDER BY updated_at DESC
        LIMIT $2
    `, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed messages: %w", err)
	}
	defer rows.Close()

	var out []FailedMessage
	for rows.Next() {
		var f FailedMessage
		if err := rows.Scan(&f.OwnerID, &f.MessageID, &f.State, &f.Reason, &f.ErrorMessage, &f.Attempts, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failed message: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
