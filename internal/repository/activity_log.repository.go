package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

type ActivityLogRepository struct {
	db *sqlx.DB
}

func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func (r *ActivityLogRepository) Create(ctx context.Context, entry entity.LogEntry) error {
	query, args, err := buildActivityLogInsert(entry)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func buildActivityLogInsert(entry entity.LogEntry) (string, []any, error) {
	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(entity.ActivityLogRecord{}.TableName()).
		Columns("log_type", "message", "logged_at").
		Values(string(entry.Type), entry.Message, entry.Timestamp).
		ToSql()
}
