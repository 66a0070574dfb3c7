package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

// CouncilMessageRepository is an append-only archive of council traffic. Messages are keyed
// by id so replays after a reconnect are ignored.
type CouncilMessageRepository struct {
	db *sqlx.DB
}

func NewCouncilMessageRepository(db *sqlx.DB) *CouncilMessageRepository {
	return &CouncilMessageRepository{db: db}
}

func (r *CouncilMessageRepository) Create(ctx context.Context, message entity.CouncilMessage) error {
	record, err := entity.NewCouncilMessageRecord(message)
	if err != nil {
		return err
	}

	query, args, err := buildCouncilMessageInsert(record)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// FindRecent returns up to limit archived messages, newest first.
func (r *CouncilMessageRepository) FindRecent(ctx context.Context, limit uint64) ([]entity.CouncilMessage, error) {
	query, args, err := buildCouncilMessageSelect(limit)
	if err != nil {
		return nil, err
	}

	var records []entity.CouncilMessageRecord
	err = r.db.SelectContext(ctx, &records, query, args...)
	if err != nil {
		return nil, err
	}

	messages := make([]entity.CouncilMessage, 0, len(records))
	for _, record := range records {
		messages = append(messages, record.ToMessage())
	}

	return messages, nil
}

func buildCouncilMessageInsert(record entity.CouncilMessageRecord) (string, []any, error) {
	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(record.TableName()).
		Columns(
			"id",
			"message_type",
			"sender",
			"content",
			"context",
			"sent_at",
			"created_at",
		).
		Values(
			record.ID,
			record.MessageType,
			record.Sender,
			record.Content,
			record.Context,
			record.SentAt,
			record.CreatedAt,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
}

func buildCouncilMessageSelect(limit uint64) (string, []any, error) {
	if limit == 0 {
		limit = 50
	}

	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id", "message_type", "sender", "content", "context", "sent_at", "created_at").
		From(entity.CouncilMessageRecord{}.TableName()).
		OrderBy("sent_at desc").
		Limit(limit).
		ToSql()
}
