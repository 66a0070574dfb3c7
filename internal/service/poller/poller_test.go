package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
)

type recorder struct {
	mu        sync.Mutex
	snapshots []entity.DashboardSnapshot
	errs      []error
	statuses  []entity.ConnectionState
}

func (r *recorder) HandleSnapshot(snapshot entity.DashboardSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recorder) HandleSnapshotError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) HandleSnapshotStatus(status entity.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) counts() (snapshots, errs, statuses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), len(r.errs), len(r.statuses)
}

func (r *recorder) lastStatus() entity.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func testConfig() Config {
	return Config{
		Interval:       15 * time.Second,
		MaxInterval:    60 * time.Second,
		BackoffFactor:  1.5,
		GraceFailures:  3,
		RequestTimeout: time.Second,
	}
}

func balance(v float64) map[string]any {
	return map[string]any{"portfolio": map[string]any{"balance": v}}
}

var errUnreachable = entity.NewNetworkError(errors.New("dial tcp 127.0.0.1:1: connect: connection refused"))

func TestPoller_NetworkGraceThenBackoff(t *testing.T) {
	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		return nil, errUnreachable
	}), testConfig())

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool {
		_, _, statuses := rec.counts()
		return statuses == 1
	})

	ctx := context.Background()
	for i := 2; i <= 3; i++ {
		if err := p.RefreshNow(ctx); err == nil {
			t.Fatalf("expected fetch error")
		}
		if _, errs, _ := rec.counts(); errs != 0 {
			t.Fatalf("failure %d surfaced during grace period", i)
		}
		if p.Status() != entity.ConnectionConnecting {
			t.Fatalf("failure %d: expected connecting, got %s", i, p.Status())
		}
		if p.Interval() != 15*time.Second {
			t.Fatalf("failure %d: interval changed during grace period: %s", i, p.Interval())
		}
	}

	_ = p.RefreshNow(ctx)

	if _, errs, _ := rec.counts(); errs != 1 {
		t.Fatalf("expected the 4th failure to surface, got %d errors", errs)
	}
	if p.Status() != entity.ConnectionDisconnected || rec.lastStatus() != entity.ConnectionDisconnected {
		t.Fatalf("expected disconnected, got %s", p.Status())
	}
	if p.Interval() != 22500*time.Millisecond {
		t.Fatalf("expected 22500ms interval, got %s", p.Interval())
	}
	if p.ConsecutiveFailures() != 4 {
		t.Fatalf("expected 4 consecutive failures, got %d", p.ConsecutiveFailures())
	}
}

func TestPoller_BackoffMonotonicAndReset(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		if fail.Load() {
			return nil, entity.NewProtocolError("snapshot has no recognizable fields", nil)
		}
		return balance(10), nil
	}), testConfig())

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool {
		_, errs, _ := rec.counts()
		return errs == 1
	})

	expected := 22500 * time.Millisecond
	if p.Interval() != expected {
		t.Fatalf("expected protocol error to back off immediately, got %s", p.Interval())
	}

	previous := p.Interval()
	for i := 0; i < 6; i++ {
		_ = p.RefreshNow(context.Background())
		current := p.Interval()
		if current < previous {
			t.Fatalf("interval decreased from %s to %s", previous, current)
		}
		if current > 60*time.Second {
			t.Fatalf("interval %s exceeds ceiling", current)
		}
		previous = current
	}
	if previous != 60*time.Second {
		t.Fatalf("expected interval to reach the 60s ceiling, got %s", previous)
	}

	fail.Store(false)
	if err := p.RefreshNow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Interval() != 15*time.Second {
		t.Fatalf("expected a single success to reset the interval, got %s", p.Interval())
	}
	if p.Status() != entity.ConnectionConnected || p.ConsecutiveFailures() != 0 {
		t.Fatalf("expected connected with no failures, got %s/%d", p.Status(), p.ConsecutiveFailures())
	}
}

func TestPoller_ServerErrorSkipsGrace(t *testing.T) {
	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		return nil, entity.NewServerError(502, "snapshot endpoint returned an error")
	}), testConfig())

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool {
		_, errs, _ := rec.counts()
		return errs == 1
	})
	if p.Status() != entity.ConnectionDisconnected {
		t.Fatalf("expected disconnected after server error, got %s", p.Status())
	}
}

func TestPoller_LatestInitiatedFetchWins(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		switch calls.Add(1) {
		case 1:
			return balance(1), nil
		case 2:
			<-release
			return balance(2), nil
		default:
			return balance(3), nil
		}
	}), Config{Interval: time.Hour, MaxInterval: time.Hour})

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool {
		snapshots, _, _ := rec.counts()
		return snapshots == 1
	})

	staleDone := make(chan error, 1)
	go func() {
		staleDone <- p.RefreshNow(context.Background())
	}()
	eventually(t, func() bool { return calls.Load() == 2 })

	if err := p.RefreshNow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	close(release)
	if err := <-staleDone; err != nil {
		t.Fatalf("unexpected error from stale fetch: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.snapshots) != 2 {
		t.Fatalf("expected stale result to be discarded, got %d snapshots", len(rec.snapshots))
	}
	if got := rec.snapshots[len(rec.snapshots)-1].Portfolio.Balance; got != 3 {
		t.Fatalf("expected the newest initiated fetch to win, got balance %v", got)
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once

	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, entity.NewNetworkError(ctx.Err())
	}), testConfig())

	rec := &recorder{}
	p.Start(rec)
	<-started
	p.Stop()

	snapshots, errs, statuses := rec.counts()
	if snapshots != 0 || errs != 0 || statuses != 0 {
		t.Fatalf("expected nothing applied after stop, got %d/%d/%d", snapshots, errs, statuses)
	}
	if err := p.RefreshNow(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestIsNetworkError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network fetch error", errUnreachable, true},
		{"wrapped network fetch error", errors.Join(errors.New("poll"), errUnreachable), true},
		{"protocol fetch error", entity.NewProtocolError("bad json", nil), false},
		{"server fetch error", entity.NewServerError(500, "boom"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("something else"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNetworkError(tc.err); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPoller_ZeroConfigUsesDefaultGrace(t *testing.T) {
	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		return nil, errUnreachable
	}), Config{})

	if p.cfg.GraceFailures != constant.DefaultGraceFailures {
		t.Fatalf("expected default grace of %d, got %d", constant.DefaultGraceFailures, p.cfg.GraceFailures)
	}
	if p.Interval() != constant.DefaultPollInterval {
		t.Fatalf("expected default interval, got %s", p.Interval())
	}

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool { return p.ConsecutiveFailures() == 1 })
	for i := 0; i < 2; i++ {
		_ = p.RefreshNow(context.Background())
	}

	if _, errs, _ := rec.counts(); errs != 0 {
		t.Fatalf("expected no surfaced errors during grace, got %d", errs)
	}
	if p.Status() != entity.ConnectionConnecting || p.Interval() != constant.DefaultPollInterval {
		t.Fatalf("expected connecting at base interval, got %s/%s", p.Status(), p.Interval())
	}

	_ = p.RefreshNow(context.Background())
	if _, errs, _ := rec.counts(); errs != 1 {
		t.Fatalf("expected the fourth failure to surface, got %d errors", errs)
	}
}

func TestPoller_NegativeGraceDisablesGrace(t *testing.T) {
	if got := (Config{GraceFailures: -1}).withDefaults().GraceFailures; got != 0 {
		t.Fatalf("expected grace disabled, got %d", got)
	}
}

func TestPoller_RefreshSuccessReschedulesPoll(t *testing.T) {
	var (
		fail  atomic.Bool
		calls atomic.Int32
	)
	fail.Store(true)

	p := NewPoller(FetcherFunc(func(ctx context.Context) (any, error) {
		calls.Add(1)
		if fail.Load() {
			return nil, entity.NewProtocolError("snapshot has no recognizable fields", nil)
		}
		return balance(1), nil
	}), Config{Interval: 50 * time.Millisecond, MaxInterval: 3 * time.Second, BackoffFactor: 60})

	rec := &recorder{}
	p.Start(rec)
	defer p.Stop()

	eventually(t, func() bool {
		_, errs, _ := rec.counts()
		return errs == 1
	})
	if p.Interval() != 3*time.Second {
		t.Fatalf("expected backoff to 3s, got %s", p.Interval())
	}

	fail.Store(false)
	if err := p.RefreshNow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	afterRefresh := calls.Load()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && calls.Load() < afterRefresh+2 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := calls.Load() - afterRefresh; got < 2 {
		t.Fatalf("expected scheduled polls at the base interval after recovery, got %d in 1s", got)
	}
}
