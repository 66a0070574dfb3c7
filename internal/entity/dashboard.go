package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

type AgentStatus string

const (
	AgentStatusActive     AgentStatus = "active"
	AgentStatusIdle       AgentStatus = "idle"
	AgentStatusMonitoring AgentStatus = "monitoring"
	AgentStatusError      AgentStatus = "error"
)

type PositionSide string

const (
	PositionSideBuy     PositionSide = "BUY"
	PositionSideSell    PositionSide = "SELL"
	PositionSideLong    PositionSide = "LONG"
	PositionSideShort   PositionSide = "SHORT"
	PositionSideUnknown PositionSide = "unknown"
)

// DashboardSnapshot is replaced wholesale on every applied poll.
type DashboardSnapshot struct {
	Portfolio    Portfolio    `json:"portfolio"`
	Agents       []Agent      `json:"agents"`
	Positions    []Position   `json:"positions"`
	Trades       []Trade      `json:"trades"`
	Targets      Targets      `json:"targets"`
	SystemStatus SystemStatus `json:"systemStatus"`
	Timestamp    time.Time    `json:"timestamp"`
}

type Portfolio struct {
	Balance          float64 `json:"balance"`
	Equity           float64 `json:"equity"`
	TotalPnL         float64 `json:"totalPnL"`
	DailyPnL         float64 `json:"dailyPnL"`
	UnrealizedPnL    float64 `json:"unrealizedPnL"`
	RealizedPnL      float64 `json:"realizedPnL"`
	MarginUsed       float64 `json:"marginUsed"`
	AvailableBalance float64 `json:"availableBalance"`
}

type Targets struct {
	Daily    float64 `json:"daily"`
	Weekly   float64 `json:"weekly"`
	Monthly  float64 `json:"monthly"`
	Progress float64 `json:"progress"`
}

type SystemStatus struct {
	Status   string            `json:"status"`
	Mode     string            `json:"mode"`
	Version  string            `json:"version"`
	Uptime   float64           `json:"uptime"`
	Services map[string]string `json:"services"`
}

type Agent struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Status             AgentStatus `json:"status"`
	TotalPnL           float64     `json:"totalPnL"`
	WinRate            float64     `json:"winRate"`
	Positions          []Position  `json:"positions"`
	Symbols            []string    `json:"symbols"`
	LastTradeTimestamp null.Time   `json:"lastTradeTimestamp"`
}

type Position struct {
	Symbol       string       `json:"symbol"`
	Side         PositionSide `json:"side"`
	Size         float64      `json:"size"`
	EntryPrice   float64      `json:"entryPrice"`
	CurrentPrice float64      `json:"currentPrice"`
	PnL          float64      `json:"pnl"`
	PnLPercent   float64      `json:"pnlPercent"`
	Leverage     float64      `json:"leverage"`
	Notional     float64      `json:"notional"`
}

type Trade struct {
	ID        null.String  `json:"id"`
	Symbol    string       `json:"symbol"`
	Side      PositionSide `json:"side"`
	Quantity  float64      `json:"quantity"`
	Price     float64      `json:"price"`
	Notional  null.Float   `json:"notional"`
	PnL       null.Float   `json:"pnl"`
	Timestamp time.Time    `json:"timestamp"`
}
