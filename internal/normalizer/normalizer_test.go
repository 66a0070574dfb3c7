package normalizer

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func withFixedNow(t *testing.T) {
	t.Helper()
	original := now
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = original })
}

func decode(t *testing.T, raw string) any {
	t.Helper()
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("invalid test payload: %v", err)
	}
	return out
}

func TestNormalizeSnapshot_AgentScenario(t *testing.T) {
	withFixedNow(t)

	snap := NormalizeSnapshot(decode(t, `{"portfolio":{"balance":1000},"agents":[{"id":"a1","status":"active","total_pnl":50}]}`))

	if snap.Portfolio.Balance != 1000 {
		t.Errorf("expected balance 1000, got %v", snap.Portfolio.Balance)
	}
	if len(snap.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(snap.Agents))
	}

	agent := snap.Agents[0]
	if agent.Status != entity.AgentStatusActive {
		t.Errorf("expected status active, got %q", agent.Status)
	}
	if agent.TotalPnL != 50 {
		t.Errorf("expected totalPnL 50, got %v", agent.TotalPnL)
	}
	if agent.Positions == nil || len(agent.Positions) != 0 {
		t.Errorf("expected empty non-nil positions, got %#v", agent.Positions)
	}
	if agent.Name != "a1" {
		t.Errorf("expected name to fall back to id, got %q", agent.Name)
	}
	if !snap.Timestamp.Equal(fixedNow) {
		t.Errorf("expected timestamp fallback to now, got %s", snap.Timestamp)
	}
}

func TestNormalizeSnapshot_MalformedPayloads(t *testing.T) {
	withFixedNow(t)

	payloads := []any{
		nil,
		"not an object",
		42.0,
		[]any{1.0, 2.0},
		map[string]any{},
		decode(t, `{"portfolio":"oops","agents":"nope","positions":{"a":1},"trades":null}`),
		decode(t, `{"portfolio":{"balance":"abc","equity":"12.5","total_pnl":true},"agents":[null,1,{"status":42}]}`),
		decode(t, `{"positions":[{"size":"NaN","current_price":"Infinity","leverage":"x"}]}`),
		decode(t, `{"data":{"trades":[{"price":"1e3","pnl":null}]}}`),
	}

	for i, payload := range payloads {
		snap := NormalizeSnapshot(payload)

		if snap.Agents == nil || snap.Positions == nil || snap.Trades == nil {
			t.Errorf("payload %d: nil slice in snapshot %#v", i, snap)
		}
		if snap.SystemStatus.Status == "" || snap.SystemStatus.Services == nil {
			t.Errorf("payload %d: system status not defaulted: %#v", i, snap.SystemStatus)
		}
		assertFinite(t, i, snap.Portfolio.Balance, snap.Portfolio.Equity, snap.Portfolio.TotalPnL, snap.Targets.Daily)
		for _, p := range snap.Positions {
			assertFinite(t, i, p.Size, p.CurrentPrice, p.Notional, p.Leverage, p.PnL)
		}
		for _, a := range snap.Agents {
			if a.Status == "" || a.Symbols == nil || a.Positions == nil {
				t.Errorf("payload %d: agent not defaulted: %#v", i, a)
			}
		}
		if snap.Timestamp.IsZero() {
			t.Errorf("payload %d: expected timestamp", i)
		}
	}

	snap := NormalizeSnapshot(payloads[6])
	if snap.Portfolio.Balance != 0 || snap.Portfolio.Equity != 12.5 || snap.Portfolio.TotalPnL != 1 {
		t.Errorf("unexpected coercion: %#v", snap.Portfolio)
	}
	if len(snap.Agents) != 1 || snap.Agents[0].Status != entity.AgentStatusIdle {
		t.Errorf("expected one idle agent, got %#v", snap.Agents)
	}

	snap = NormalizeSnapshot(payloads[8])
	if len(snap.Trades) != 1 || snap.Trades[0].Price != 1000 || snap.Trades[0].PnL.Valid {
		t.Errorf("unexpected trade from wrapped payload: %#v", snap.Trades)
	}
}

func assertFinite(t *testing.T, idx int, values ...float64) {
	t.Helper()
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("payload %d: non-finite value %v", idx, v)
		}
	}
}

func TestNormalizeSnapshot_FixedPoint(t *testing.T) {
	withFixedNow(t)

	raw := decode(t, `{
		"portfolio": {"balance": "10500.25", "equity": 11000, "daily_pnl": -12.5, "unrealized_pnl": 499.75},
		"agents": [
			{"agent_id": "qwen", "name": "Qwen", "status": "TRADING", "win_rate": 0.61,
			 "last_trade_at": 1760693400000,
			 "positions": [{"coin": "BTC", "szi": -0.5, "entry_px": "65000", "mark_price": 64000, "unrealized_pnl": 500}]},
			{"id": "deepseek", "status": "sleeping"}
		],
		"trades": [
			{"trade_id": 7, "symbol": "ETH", "side": "buy", "qty": "2", "price": 3000, "realized_pnl": 15, "executed_at": "2026-10-17T09:00:00Z"},
			{"symbol": "SOL", "quantity": 1, "price": 150}
		],
		"targets": {"daily_target": 200, "progress": 0.4},
		"system_status": {"status": "RUNNING", "mode": "paper", "services": {"db": "ok", "llm": {"status": "degraded"}}},
		"timestamp": "2026-10-17T09:29:00.123Z"
	}`)

	first := NormalizeSnapshot(raw)

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	second := NormalizeSnapshot(decode(t, string(encoded)))

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not a fixed point:\nfirst:  %#v\nsecond: %#v", first, second)
	}

	if len(first.Positions) != 1 || first.Positions[0].Side != entity.PositionSideShort {
		t.Errorf("expected positions flattened from agents with inferred SHORT side, got %#v", first.Positions)
	}
	if first.Positions[0].Notional != -32000 {
		t.Errorf("expected derived notional -32000, got %v", first.Positions[0].Notional)
	}
	if first.Agents[0].Symbols[0] != "BTC" {
		t.Errorf("expected symbols derived from positions, got %#v", first.Agents[0].Symbols)
	}
	if !first.Agents[0].LastTradeTimestamp.Valid {
		t.Errorf("expected last trade timestamp to be parsed")
	}
	if first.Trades[0].ID.String != "7" || first.Trades[0].Side != entity.PositionSideBuy {
		t.Errorf("unexpected trade normalization: %#v", first.Trades[0])
	}
	if first.Trades[1].ID.Valid || first.Trades[1].Notional.Valid || first.Trades[1].Side != entity.PositionSideUnknown {
		t.Errorf("expected optional trade fields to stay empty: %#v", first.Trades[1])
	}
	if first.SystemStatus.Status != "running" || first.SystemStatus.Services["llm"] != "degraded" {
		t.Errorf("unexpected system status: %#v", first.SystemStatus)
	}
}

func TestNormalizePosition_Side(t *testing.T) {
	testCases := []struct {
		name string
		raw  map[string]any
		want entity.PositionSide
	}{
		{"lowercase long", map[string]any{"side": "long"}, entity.PositionSideLong},
		{"mixed case sell", map[string]any{"side": "Sell"}, entity.PositionSideSell},
		{"unrecognized", map[string]any{"side": "sideways"}, entity.PositionSideUnknown},
		{"absent positive notional", map[string]any{"notional": 100.0}, entity.PositionSideLong},
		{"absent zero notional", map[string]any{}, entity.PositionSideLong},
		{"absent negative notional", map[string]any{"notional": "-5"}, entity.PositionSideShort},
		{"empty side infers", map[string]any{"side": "", "notional": -1.0}, entity.PositionSideShort},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizePosition(tc.raw).Side
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}

	if lev := NormalizePosition(map[string]any{}).Leverage; lev != 1 {
		t.Errorf("expected default leverage 1, got %v", lev)
	}
}

func TestNormalizeAgent_Status(t *testing.T) {
	testCases := map[string]entity.AgentStatus{
		"":           entity.AgentStatusIdle,
		"ACTIVE":     entity.AgentStatusActive,
		"monitoring": entity.AgentStatusMonitoring,
		"error":      entity.AgentStatusError,
		"running":    entity.AgentStatusActive,
		"scanning":   entity.AgentStatusMonitoring,
		"crashed":    entity.AgentStatusError,
		"banana":     entity.AgentStatusIdle,
	}

	for input, want := range testCases {
		got := NormalizeAgent(map[string]any{"id": "x", "status": input}).Status
		if got != want {
			t.Errorf("status %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestHasSnapshotFields(t *testing.T) {
	if HasSnapshotFields(decode(t, `{"error":"nope"}`)) {
		t.Errorf("expected no snapshot fields")
	}
	if HasSnapshotFields(decode(t, `[1,2]`)) {
		t.Errorf("expected array to be rejected")
	}
	if !HasSnapshotFields(decode(t, `{"data":{"agents":[]}}`)) {
		t.Errorf("expected wrapped snapshot to be accepted")
	}
	if !HasSnapshotFields(decode(t, `{"portfolio":{}}`)) {
		t.Errorf("expected snapshot with portfolio to be accepted")
	}
}

func TestAsTime(t *testing.T) {
	want := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	inputs := []any{
		"2026-10-17T09:00:00Z",
		"2026-10-17T11:00:00+02:00",
		"2026-10-17 09:00:00",
		float64(want.Unix()),
		float64(want.UnixMilli()),
		"1792227600",
	}

	for _, input := range inputs {
		got, ok := asTime(input)
		if !ok || !got.Equal(want) {
			t.Errorf("asTime(%v) = %s, %v", input, got, ok)
		}
	}

	if _, ok := asTime("yesterday"); ok {
		t.Errorf("expected unparseable string to fail")
	}
	if _, ok := asTime(-1.0); ok {
		t.Errorf("expected negative epoch to fail")
	}
}
