package normalizer

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

var logTypeAliases = map[string]entity.LogType{
	"warn":     entity.LogTypeWarning,
	"err":      entity.LogTypeError,
	"fatal":    entity.LogTypeError,
	"critical": entity.LogTypeError,
	"ok":       entity.LogTypeSuccess,
	"done":     entity.LogTypeSuccess,
	"debug":    entity.LogTypeInfo,
	"notice":   entity.LogTypeInfo,
}

// ordered by precedence: "disconnected" must hit the warning markers before "connected"
// reaches the success ones.
var logMarkers = []struct {
	logType entity.LogType
	markers []string
}{
	{entity.LogTypeError, []string{"error", "failed", "failure", "exception", "rejected", "❌"}},
	{entity.LogTypeWarning, []string{"warn", "disconnect", "retry", "timeout", "caution", "⚠"}},
	{entity.LogTypeSuccess, []string{"success", "filled", "executed", "completed", "connected", "opened", "✅"}},
}

// ClassifyLog infers a log type from free text.
func ClassifyLog(message string) entity.LogType {
	text := strings.ToLower(message)
	for _, group := range logMarkers {
		for _, marker := range group.markers {
			if strings.Contains(text, marker) {
				return group.logType
			}
		}
	}

	return entity.LogTypeInfo
}

func normalizeLogType(v any) entity.LogType {
	s := strings.ToLower(asString(v))
	switch entity.LogType(s) {
	case entity.LogTypeInfo, entity.LogTypeSuccess, entity.LogTypeWarning, entity.LogTypeError:
		return entity.LogType(s)
	}

	return logTypeAliases[s]
}

// NormalizeLog accepts either a bare text line or an object with message/type/timestamp.
func NormalizeLog(raw any) entity.LogEntry {
	if line, ok := raw.(string); ok {
		line = strings.TrimSpace(line)
		return entity.LogEntry{
			Timestamp: now(),
			Message:   line,
			Type:      ClassifyLog(line),
		}
	}

	m := asMap(raw)
	message := str(m, "message", "msg", "text", "content", "log")

	logType := normalizeLogType(value(m, "type", "level", "severity"))
	if logType == "" {
		logType = ClassifyLog(message)
	}

	return entity.LogEntry{
		Timestamp: timeOr(value(m, "timestamp", "time", "ts", "created_at", "createdAt"), now()),
		Message:   message,
		Type:      logType,
	}
}

// NormalizeMessage maps a council frame body to the canonical message. Content falls back
// from the top-level fields to the payload's rationale-like fields and finally to the
// payload encoded as JSON.
func NormalizeMessage(raw any) entity.CouncilMessage {
	m := asMap(raw)
	payload := asMap(value(m, "payload", "data"))

	id := str(m, "id", "message_id", "messageId")
	if id == "" {
		id = uuid.NewString()
	}

	msgType := str(m, "message_type", "messageType", "type", "kind")
	if msgType == "" {
		msgType = "unknown"
	}

	sender := str(m, "sender_id", "senderId", "sender", "agent_id", "agentId", "from")
	if sender == "" {
		sender = "unknown"
	}

	content := str(m, "content", "text", "body")
	if content == "" {
		content = str(payload, "rationale", "content", "message", "text", "reasoning", "summary")
	}
	if content == "" && len(payload) > 0 {
		if encoded, err := json.Marshal(payload); err == nil {
			content = string(encoded)
		}
	}

	context := asMap(value(m, "context"))
	if context == nil {
		context = asMap(value(payload, "context"))
	}

	return entity.CouncilMessage{
		ID:        id,
		Type:      msgType,
		Sender:    sender,
		Timestamp: timeOr(value(m, "timestamp", "created_at", "createdAt", "time"), now()),
		Content:   content,
		Context:   context,
	}
}
