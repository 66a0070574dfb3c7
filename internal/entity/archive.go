package entity

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
)

// CouncilMessageRecord is the archived form of a CouncilMessage.
type CouncilMessageRecord struct {
	ID          string      `db:"id"`
	MessageType string      `db:"message_type"`
	Sender      string      `db:"sender"`
	Content     string      `db:"content"`
	Context     null.String `db:"context"`
	SentAt      time.Time   `db:"sent_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (CouncilMessageRecord) TableName() string {
	return "council_messages"
}

func NewCouncilMessageRecord(message CouncilMessage) (CouncilMessageRecord, error) {
	record := CouncilMessageRecord{
		ID:          message.ID,
		MessageType: message.Type,
		Sender:      message.Sender,
		Content:     message.Content,
		SentAt:      message.Timestamp,
		CreatedAt:   time.Now().UTC(),
	}

	if len(message.Context) > 0 {
		encoded, err := json.Marshal(message.Context)
		if err != nil {
			return CouncilMessageRecord{}, err
		}
		record.Context = null.StringFrom(string(encoded))
	}

	return record, nil
}

func (r CouncilMessageRecord) ToMessage() CouncilMessage {
	message := CouncilMessage{
		ID:        r.ID,
		Type:      r.MessageType,
		Sender:    r.Sender,
		Timestamp: r.SentAt.UTC(),
		Content:   r.Content,
	}

	if r.Context.Valid {
		var context map[string]any
		if err := json.Unmarshal([]byte(r.Context.String), &context); err == nil {
			message.Context = context
		}
	}

	return message
}

type ActivityLogRecord struct {
	ID       int64     `db:"id"`
	LogType  string    `db:"log_type"`
	Message  string    `db:"message"`
	LoggedAt time.Time `db:"logged_at"`
}

func (ActivityLogRecord) TableName() string {
	return "activity_logs"
}
