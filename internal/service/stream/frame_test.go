package stream

import (
	"errors"
	"testing"
)

func TestParseFrame_CouncilMessage(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"message":{"message_type":"proposal","sender_id":"qwen","payload":{"rationale":"go long"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Kind != FrameCouncilMessage || len(frame.Messages) != 1 {
		t.Fatalf("expected one council message, got %+v", frame)
	}

	msg := frame.Messages[0]
	if msg.Type != "proposal" || msg.Sender != "qwen" || msg.Content != "go long" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", msg)
	}
}

func TestParseFrame_Kinds(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		kind    FrameKind
		wantErr error
	}{
		{"typed envelope", `{"type":"council_message","data":{"type":"vote","sender":"claude","content":"agree"}}`, FrameCouncilMessage, nil},
		{"message without type", `{"message":{"sender_id":"qwen"}}`, 0, ErrMissingFields},
		{"typed envelope without body", `{"type":"negotiation"}`, 0, ErrMissingFields},
		{"history", `{"type":"council_history","messages":[{"message_type":"a","timestamp":"2026-10-17T09:01:00Z"},{"message_type":"b","timestamp":"2026-10-17T09:00:00Z"},"junk"]}`, FrameCouncilHistory, nil},
		{"log object", `{"type":"log","data":{"message":"order filled","level":"success"}}`, FrameLog, nil},
		{"log text", `{"type":"activity","message":"connection lost, retry soon"}`, FrameLog, nil},
		{"empty log", `{"type":"log","data":{}}`, 0, ErrMissingFields},
		{"log text beside empty data", `{"type":"log","data":{"level":"info"},"log":"agent qwen opened BTC long"}`, FrameLog, nil},
		{"ping", `{"type":"ping"}`, FrameIgnored, nil},
		{"welcome", `{"type":"welcome","message":"hi"}`, FrameIgnored, nil},
		{"unknown", `{"type":"leaderboard","data":[1,2,3]}`, FrameIgnored, nil},
		{"malformed", `{"message":`, 0, ErrMalformedFrame},
		{"not an object", `[1,2]`, 0, ErrMalformedFrame},
		{"null", `null`, 0, ErrMalformedFrame},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tc.raw))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, frame.Kind)
			}
		})
	}
}

func TestParseFrame_HistoryIsChronological(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"type":"history","data":[
		{"message_type":"late","timestamp":"2026-10-17T09:05:00Z"},
		{"message_type":"early","timestamp":"2026-10-17T09:00:00Z"}
	]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.Messages) != 2 || frame.Messages[0].Type != "early" || frame.Messages[1].Type != "late" {
		t.Fatalf("expected oldest first, got %+v", frame.Messages)
	}
}

func TestParseFrame_LogClassification(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"type":"activity","message":"connection lost, retry soon"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Log.Type != "warning" {
		t.Fatalf("expected warning classification, got %q", frame.Log.Type)
	}
}

func TestParseFrame_LogFallsBackPastEmptyBody(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"type":"log","data":{"level":"info"},"payload":{"message":"agent qwen opened BTC long"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Log == nil || frame.Log.Message != "agent qwen opened BTC long" {
		t.Fatalf("expected message from payload, got %#v", frame.Log)
	}
}
