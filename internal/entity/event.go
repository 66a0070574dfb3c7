package entity

import "time"

type LogType string

const (
	LogTypeInfo    LogType = "info"
	LogTypeSuccess LogType = "success"
	LogTypeWarning LogType = "warning"
	LogTypeError   LogType = "error"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}

// CouncilMessage is one unit of inter-agent negotiation traffic.
type CouncilMessage struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Sender    string         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Content   string         `json:"content"`
	Context   map[string]any `json:"context,omitempty"`
}

type SyncEventType string

const (
	SyncEventSnapshot       SyncEventType = "snapshot"
	SyncEventCouncilMessage SyncEventType = "council_message"
	SyncEventLog            SyncEventType = "log"
	SyncEventStatus         SyncEventType = "status"
	SyncEventError          SyncEventType = "error"
)

// SyncEvent is what the sync service hands to subscribers after every state transition.
// Only the field matching Type is populated, except the statuses which are always set.
type SyncEvent struct {
	Type             SyncEventType      `json:"type"`
	Snapshot         *DashboardSnapshot `json:"snapshot,omitempty"`
	CouncilMessage   *CouncilMessage    `json:"councilMessage,omitempty"`
	Log              *LogEntry          `json:"log,omitempty"`
	Error            string             `json:"error,omitempty"`
	ConnectionStatus ConnectionState    `json:"connectionStatus"`
	CouncilStatus    ConnectionState    `json:"councilStatus"`
	At               time.Time          `json:"at"`
}
