package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontracts "jobmail/contracts/mq"
	"jobmail/internal/model"
	"jobmail/pkg/outbox"
	"jobmail/pkg/trace"
	"jobmail/pkg/util"
)

const pgForeignKeyViolation = "23503"

type ApplicationRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
}

func NewApplicationRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository) *ApplicationRepository {
	return &ApplicationRepository{db: db, outbox: outboxRepo}
}

// InsertApplication 在同一个事务中写入记录和 application.recorded 事件
func (r *ApplicationRepository) InsertApplication(ctx context.Context, rec model.ApplicationRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return sinkError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var appID int64
	err = tx.QueryRow(ctx, `
        INSERT INTO applications (
            client_id, company, position, interview_type, previous_interview,
            result, interviewers, submission_date, recent_date, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING app_id
    `,
		rec.OwnerID,
		rec.Company,
		rec.Position,
		rec.InterviewType,
		rec.PreviousInterview,
		rec.Result,
		rec.Interviewers,
		rec.SubmissionDate,
		rec.RecentDate,
	).Scan(&appID)
	if err != nil {
		return sinkError("insert application", err)
	}

	payload := mqcontracts.ApplicationRecordedPayload{
		OwnerID:    rec.OwnerID,
		AppID:      appID,
		Result:     rec.Result,
		TraceID:    trace.FromContext(ctx),
		RecordedAt: time.Now().UTC(),
	}
	if _, err := r.outbox.Append(ctx, tx, "application", rec.OwnerID, mqcontracts.RoutingKeyApplicationRecorded, payload); err != nil {
		return sinkError("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return sinkError("commit", err)
	}
	return nil
}

// ListByOwner 按写入顺序返回用户的所有记录
func (r *ApplicationRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Application, error) {
	rows, err := r.db.Query(ctx, `
        SELECT app_id, client_id, company, position, interview_type, previous_interview,
               result, interviewers, submission_date, recent_date, created_at
        FROM applications
        WHERE client_id = $1
        ORDER BY app_id ASC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		var a model.Application
		if err := rows.Scan(
			&a.AppID,
			&a.OwnerID,
			&a.Company,
			&a.Position,
			&a.InterviewType,
			&a.PreviousInterview,
			&a.Result,
			&a.Interviewers,
			&a.SubmissionDate,
			&a.RecentDate,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ListResults 只取 result 列，用于统计
func (r *ApplicationRepository) ListResults(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT result FROM applications WHERE client_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// sinkError 连接层失败归为 ErrSinkUnavailable，其余归为 ErrPersistence
func sinkError(op string, err error) error {
	if util.IsConnectionError(err) {
		return fmt.Errorf("%w: %s: %w", model.ErrSinkUnavailable, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s: %w: %w", model.ErrPersistence, op, model.ErrUnknownOwner, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrPersistence, op, err)
}
