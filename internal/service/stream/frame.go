package stream

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/normalizer"
)

var (
	ErrMalformedFrame = errors.New("malformed stream frame")
	ErrMissingFields  = errors.New("stream frame is missing required fields")
)

type FrameKind int

const (
	FrameIgnored FrameKind = iota
	FrameCouncilMessage
	FrameCouncilHistory
	FrameLog
)

func (k FrameKind) String() string {
	switch k {
	case FrameCouncilMessage:
		return "council_message"
	case FrameCouncilHistory:
		return "council_history"
	case FrameLog:
		return "log"
	default:
		return "ignored"
	}
}

// Frame is a decoded, normalized inbound text frame. History messages are ordered oldest
// first.
type Frame struct {
	Kind     FrameKind
	Messages []entity.CouncilMessage
	Log      *entity.LogEntry
}

var (
	messageKinds = map[string]struct{}{"council_message": {}, "message": {}, "negotiation": {}, "council": {}}
	historyKinds = map[string]struct{}{"council_history": {}, "history": {}, "messages": {}}
	logKinds     = map[string]struct{}{"log": {}, "activity": {}, "activity_log": {}}
)

// ParseFrame decodes one frame. Control frames (ping, welcome, ...) and unknown kinds are
// returned as FrameIgnored without error.
func ParseFrame(data []byte) (Frame, error) {
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if envelope == nil {
		return Frame{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	kind := strings.ToLower(firstString(envelope, "type", "kind", "event"))
	if message, ok := envelope["message"].(map[string]any); ok && (kind == "" || isKind(messageKinds, kind)) {
		return parseMessage(message)
	}

	switch {
	case isKind(messageKinds, kind):
		body, ok := firstObject(envelope, "data", "payload")
		if !ok {
			return Frame{}, fmt.Errorf("%w: %s frame without body", ErrMissingFields, kind)
		}
		return parseMessage(body)
	case isKind(historyKinds, kind):
		return parseHistory(envelope)
	case isKind(logKinds, kind):
		for _, key := range []string{"data", "log", "payload", "message"} {
			if body, ok := envelope[key]; ok && body != nil {
				entry := normalizer.NormalizeLog(body)
				if entry.Message == "" {
					continue
				}
				return Frame{Kind: FrameLog, Log: &entry}, nil
			}
		}
		return Frame{}, fmt.Errorf("%w: log frame without message", ErrMissingFields)
	default:
		return Frame{Kind: FrameIgnored}, nil
	}
}

func parseMessage(body map[string]any) (Frame, error) {
	if firstString(body, "message_type", "messageType", "type", "kind") == "" {
		return Frame{}, fmt.Errorf("%w: message_type", ErrMissingFields)
	}

	return Frame{
		Kind:     FrameCouncilMessage,
		Messages: []entity.CouncilMessage{normalizer.NormalizeMessage(body)},
	}, nil
}

func parseHistory(envelope map[string]any) (Frame, error) {
	var items []any
	for _, key := range []string{"messages", "data", "payload", "history"} {
		if list, ok := envelope[key].([]any); ok {
			items = list
			break
		}
	}
	if items == nil {
		return Frame{}, fmt.Errorf("%w: history frame without messages", ErrMissingFields)
	}

	messages := make([]entity.CouncilMessage, 0, len(items))
	for _, item := range items {
		body, ok := item.(map[string]any)
		if !ok || firstString(body, "message_type", "messageType", "type", "kind") == "" {
			continue
		}
		messages = append(messages, normalizer.NormalizeMessage(body))
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return Frame{Kind: FrameCouncilHistory, Messages: messages}, nil
}

func isKind(kinds map[string]struct{}, kind string) bool {
	_, ok := kinds[kind]
	return ok
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	return ""
}

func firstObject(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if obj, ok := m[key].(map[string]any); ok {
			return obj, true
		}
	}

	return nil, false
}
