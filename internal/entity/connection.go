package entity

import "github.com/guregu/null/v6"

type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

type Health struct {
	Status              HealthStatus    `json:"status"`
	SnapshotStatus      ConnectionState `json:"snapshotStatus"`
	StreamStatus        ConnectionState `json:"streamStatus"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
	PollIntervalMs      int64           `json:"pollIntervalMs"`
	LastSnapshotAt      null.Time       `json:"lastSnapshotAt"`
	LastMessageAt       null.Time       `json:"lastMessageAt"`
}

// DeriveHealth maps the primary channel status to a coarse health value. The stream
// channel is reported but never downgrades it.
func DeriveHealth(snapshotStatus ConnectionState) HealthStatus {
	switch snapshotStatus {
	case ConnectionConnected:
		return HealthHealthy
	case ConnectionConnecting:
		return HealthDegraded
	default:
		return HealthOffline
	}
}
