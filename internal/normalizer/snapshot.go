package normalizer

import (
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

var snapshotDataKeys = []string{
	"portfolio", "account",
	"agents",
	"positions", "open_positions", "openPositions",
	"trades", "recent_trades", "recentTrades", "trade_history", "tradeHistory",
	"targets",
	"system_status", "systemStatus", "system",
}

var agentStatusAliases = map[string]entity.AgentStatus{
	"running":   entity.AgentStatusActive,
	"trading":   entity.AgentStatusActive,
	"online":    entity.AgentStatusActive,
	"live":      entity.AgentStatusActive,
	"watching":  entity.AgentStatusMonitoring,
	"scanning":  entity.AgentStatusMonitoring,
	"analyzing": entity.AgentStatusMonitoring,
	"observing": entity.AgentStatusMonitoring,
	"failed":    entity.AgentStatusError,
	"crashed":   entity.AgentStatusError,
	"errored":   entity.AgentStatusError,
	"fault":     entity.AgentStatusError,
	"paused":    entity.AgentStatusIdle,
	"stopped":   entity.AgentStatusIdle,
	"offline":   entity.AgentStatusIdle,
	"inactive":  entity.AgentStatusIdle,
}

// HasSnapshotFields reports whether raw is an object carrying at least one recognizable
// top-level snapshot field, directly or under a "data" wrapper.
func HasSnapshotFields(raw any) bool {
	m := unwrapSnapshot(raw)
	return m != nil && hasAny(m, snapshotDataKeys)
}

func unwrapSnapshot(raw any) map[string]any {
	m := asMap(raw)
	if m == nil {
		return nil
	}
	if hasAny(m, snapshotDataKeys) {
		return m
	}
	if inner := asMap(m["data"]); inner != nil {
		return inner
	}

	return m
}

// NormalizeSnapshot never fails: missing or mistyped fields become typed defaults.
func NormalizeSnapshot(raw any) entity.DashboardSnapshot {
	m := unwrapSnapshot(raw)

	agents := make([]entity.Agent, 0)
	for _, item := range asSlice(value(m, "agents")) {
		if asMap(item) == nil {
			continue
		}
		agents = append(agents, NormalizeAgent(item))
	}

	var positions []entity.Position
	if v, ok := lookup(m, "positions", "open_positions", "openPositions"); ok {
		positions = normalizePositions(v)
	} else {
		positions = make([]entity.Position, 0)
		for _, agent := range agents {
			positions = append(positions, agent.Positions...)
		}
	}

	trades := make([]entity.Trade, 0)
	for _, item := range asSlice(value(m, "trades", "recent_trades", "recentTrades", "trade_history", "tradeHistory")) {
		if asMap(item) == nil {
			continue
		}
		trades = append(trades, NormalizeTrade(item))
	}

	return entity.DashboardSnapshot{
		Portfolio:    normalizePortfolio(asMap(value(m, "portfolio", "account"))),
		Agents:       agents,
		Positions:    positions,
		Trades:       trades,
		Targets:      normalizeTargets(asMap(value(m, "targets"))),
		SystemStatus: normalizeSystemStatus(value(m, "system_status", "systemStatus", "system")),
		Timestamp:    timeOr(value(m, "timestamp", "updated_at", "updatedAt", "last_update", "lastUpdate"), now()),
	}
}

func normalizePortfolio(m map[string]any) entity.Portfolio {
	return entity.Portfolio{
		Balance:          num(m, "balance", "total_balance", "totalBalance", "cash"),
		Equity:           num(m, "equity", "total_value", "totalValue", "account_value", "accountValue"),
		TotalPnL:         num(m, "total_pnl", "totalPnL", "totalPnl", "pnl"),
		DailyPnL:         num(m, "daily_pnl", "dailyPnL", "dailyPnl"),
		UnrealizedPnL:    num(m, "unrealized_pnl", "unrealizedPnL", "unrealizedPnl"),
		RealizedPnL:      num(m, "realized_pnl", "realizedPnL", "realizedPnl"),
		MarginUsed:       num(m, "margin_used", "marginUsed"),
		AvailableBalance: num(m, "available_balance", "availableBalance", "free_margin", "buying_power"),
	}
}

func normalizeTargets(m map[string]any) entity.Targets {
	return entity.Targets{
		Daily:    num(m, "daily", "daily_target", "dailyTarget"),
		Weekly:   num(m, "weekly", "weekly_target", "weeklyTarget"),
		Monthly:  num(m, "monthly", "monthly_target", "monthlyTarget"),
		Progress: num(m, "progress", "daily_progress", "dailyProgress"),
	}
}

func normalizeSystemStatus(raw any) entity.SystemStatus {
	status := entity.SystemStatus{
		Status:   "unknown",
		Services: make(map[string]string),
	}

	if s := asString(raw); s != "" {
		status.Status = strings.ToLower(s)
		return status
	}

	m := asMap(raw)
	if s := strings.ToLower(str(m, "status", "state")); s != "" {
		status.Status = s
	}
	status.Mode = str(m, "mode", "trading_mode", "tradingMode")
	status.Version = str(m, "version")
	status.Uptime = num(m, "uptime", "uptime_seconds", "uptimeSeconds")

	for name, v := range asMap(value(m, "services", "components")) {
		if nested := asMap(v); nested != nil {
			status.Services[name] = str(nested, "status", "state")
			continue
		}
		status.Services[name] = asString(v)
	}

	return status
}

func NormalizeAgent(raw any) entity.Agent {
	m := asMap(raw)

	id := str(m, "id", "agent_id", "agentId")
	name := str(m, "name", "agent_name", "agentName", "display_name", "displayName")
	if name == "" {
		name = id
	}

	positions := normalizePositions(value(m, "positions"))

	var symbols []string
	if v, ok := lookup(m, "symbols", "assets", "watchlist"); ok {
		symbols = asStringSlice(v)
	} else {
		symbols = symbolsOf(positions)
	}

	agent := entity.Agent{
		ID:        id,
		Name:      name,
		Status:    normalizeAgentStatus(value(m, "status", "state")),
		TotalPnL:  num(m, "total_pnl", "totalPnL", "totalPnl", "pnl"),
		WinRate:   num(m, "win_rate", "winRate"),
		Positions: positions,
		Symbols:   symbols,
	}

	if t, ok := asTime(value(m, "last_trade_timestamp", "lastTradeTimestamp", "last_trade_at", "lastTradeAt", "last_trade_time")); ok {
		agent.LastTradeTimestamp = null.TimeFrom(t)
	}

	return agent
}

func normalizeAgentStatus(v any) entity.AgentStatus {
	s := strings.ToLower(asString(v))
	switch entity.AgentStatus(s) {
	case entity.AgentStatusActive, entity.AgentStatusIdle, entity.AgentStatusMonitoring, entity.AgentStatusError:
		return entity.AgentStatus(s)
	}

	if alias, ok := agentStatusAliases[s]; ok {
		return alias
	}

	return entity.AgentStatusIdle
}

func symbolsOf(positions []entity.Position) []string {
	symbols := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p.Symbol == "" {
			continue
		}
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		symbols = append(symbols, p.Symbol)
	}

	return symbols
}

func normalizePositions(raw any) []entity.Position {
	positions := make([]entity.Position, 0)
	for _, item := range asSlice(raw) {
		if asMap(item) == nil {
			continue
		}
		positions = append(positions, NormalizePosition(item))
	}

	return positions
}

func NormalizePosition(raw any) entity.Position {
	m := asMap(raw)

	size := num(m, "size", "quantity", "qty", "amount", "szi")
	currentPrice := num(m, "current_price", "currentPrice", "mark_price", "markPrice", "price")

	notional := size * currentPrice
	if v, ok := lookup(m, "notional", "position_value", "positionValue", "notional_value"); ok {
		notional = asFloat(v)
	}

	side := inferSide(notional)
	if v, ok := lookup(m, "side", "direction"); ok && asString(v) != "" {
		side = normalizeSide(v)
	}

	leverage := num(m, "leverage", "lev")
	if leverage == 0 {
		leverage = 1
	}

	return entity.Position{
		Symbol:       str(m, "symbol", "coin", "asset", "ticker"),
		Side:         side,
		Size:         size,
		EntryPrice:   num(m, "entry_price", "entryPrice", "avg_entry_price", "avgEntryPrice", "entry_px"),
		CurrentPrice: currentPrice,
		PnL:          num(m, "pnl", "unrealized_pnl", "unrealizedPnl", "unrealizedPnL"),
		PnLPercent:   num(m, "pnl_percent", "pnlPercent", "pnl_pct", "pnlPct", "return_pct", "roe"),
		Leverage:     leverage,
		Notional:     notional,
	}
}

func normalizeSide(v any) entity.PositionSide {
	side := entity.PositionSide(strings.ToUpper(asString(v)))
	switch side {
	case entity.PositionSideBuy, entity.PositionSideSell, entity.PositionSideLong, entity.PositionSideShort:
		return side
	default:
		return entity.PositionSideUnknown
	}
}

func inferSide(notional float64) entity.PositionSide {
	if notional < 0 {
		return entity.PositionSideShort
	}

	return entity.PositionSideLong
}

func NormalizeTrade(raw any) entity.Trade {
	m := asMap(raw)

	id := str(m, "id", "trade_id", "tradeId", "order_id", "orderId")

	side := entity.PositionSideUnknown
	if v, ok := lookup(m, "side", "direction"); ok {
		side = normalizeSide(v)
	}

	return entity.Trade{
		ID:        null.NewString(id, id != ""),
		Symbol:    str(m, "symbol", "coin", "asset", "ticker"),
		Side:      side,
		Quantity:  num(m, "quantity", "qty", "size", "amount"),
		Price:     num(m, "price", "fill_price", "fillPrice", "execution_price", "avg_price"),
		Notional:  optionalNum(m, "notional", "notional_value", "value"),
		PnL:       optionalNum(m, "pnl", "realized_pnl", "realizedPnl", "realizedPnL", "closed_pnl"),
		Timestamp: timeOr(value(m, "timestamp", "time", "executed_at", "executedAt", "created_at", "createdAt"), time.Time{}),
	}
}

func optionalNum(m map[string]any, keys ...string) null.Float {
	v, ok := lookup(m, keys...)
	if !ok {
		return null.Float{}
	}

	return null.FloatFrom(asFloat(v))
}
