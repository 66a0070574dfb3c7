package poller

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/normalizer"
	"github.com/sirupsen/logrus"
)

var ErrNotRunning = errors.New("snapshot poller is not running")

// Fetcher returns the raw decoded snapshot document.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (any, error)
}

type FetcherFunc func(ctx context.Context) (any, error)

func (f FetcherFunc) FetchSnapshot(ctx context.Context) (any, error) {
	return f(ctx)
}

// Handler receives applied results. Calls are serialized and follow fetch initiation order.
type Handler interface {
	HandleSnapshot(snapshot entity.DashboardSnapshot)
	HandleSnapshotError(err error)
	HandleSnapshotStatus(status entity.ConnectionState)
}

// Config zero values fall back to the defaults. GraceFailures of 0 means the default of 3;
// a negative value disables the grace period.
type Config struct {
	Interval       time.Duration
	MaxInterval    time.Duration
	BackoffFactor  float64
	GraceFailures  int
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = constant.DefaultPollInterval
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = constant.DefaultMaxPollInterval
		if c.MaxInterval < c.Interval {
			c.MaxInterval = c.Interval
		}
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = constant.DefaultBackoffFactor
	}
	switch {
	case c.GraceFailures == 0:
		c.GraceFailures = constant.DefaultGraceFailures
	case c.GraceFailures < 0:
		c.GraceFailures = 0
	}

	return c
}

type Poller struct {
	fetcher Fetcher
	cfg     Config

	// applyMu serializes handler delivery; mu guards the fields below and is never held
	// while calling out.
	applyMu sync.Mutex
	mu      sync.Mutex

	handler    Handler
	reset      chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	interval   time.Duration
	failures   int
	status     entity.ConnectionState
	nextSeq    uint64
	appliedSeq uint64
}

func NewPoller(fetcher Fetcher, cfg Config) *Poller {
	cfg = cfg.withDefaults()

	return &Poller{
		fetcher:  fetcher,
		cfg:      cfg,
		interval: cfg.Interval,
		status:   entity.ConnectionConnecting,
		reset:    make(chan struct{}, 1),
	}
}

// Start fetches immediately and then keeps polling at the current interval until Stop.
func (p *Poller) Start(handler Handler) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.handler = handler
	p.ctx = ctx
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop cancels the pending timer and any in-flight fetch and waits for the loop to exit.
// Results that arrive afterwards are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	p.wg.Wait()

	// wait out a refresh that is already delivering; later ones see the cancelled context
	p.applyMu.Lock()
	p.applyMu.Unlock()
}

// RefreshNow performs an out-of-band fetch with the same success and failure handling as
// the scheduled poll, and returns the fetch error if any.
func (p *Poller) RefreshNow(ctx context.Context) error {
	p.mu.Lock()
	runCtx := p.ctx
	p.mu.Unlock()

	if runCtx == nil || runCtx.Err() != nil {
		return ErrNotRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	return p.poll(ctx, runCtx)
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) Status() entity.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	_ = p.poll(ctx, ctx)
	timer := time.NewTimer(p.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.reset:
			// an out-of-band success brought the interval back to base
			timer.Reset(p.Interval())
			continue
		case <-timer.C:
		}

		_ = p.poll(ctx, ctx)
		timer.Reset(p.nextDelay())
	}
}

// nextDelay drops a reset signalled by the poll that just ran; the timer is armed with the
// current interval anyway.
func (p *Poller) nextDelay() time.Duration {
	select {
	case <-p.reset:
	default:
	}

	return p.Interval()
}

func (p *Poller) poll(ctx, runCtx context.Context) error {
	p.mu.Lock()
	p.nextSeq++
	seq := p.nextSeq
	p.mu.Unlock()

	fetchCtx := ctx
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	raw, err := p.fetcher.FetchSnapshot(fetchCtx)

	// the caller or the poller went away: nothing about the remote endpoint was learned
	if ctx.Err() != nil || runCtx.Err() != nil {
		if err == nil {
			err = context.Cause(ctx)
		}
		return err
	}

	p.apply(runCtx, seq, raw, err)

	return err
}

func (p *Poller) apply(runCtx context.Context, seq uint64, raw any, fetchErr error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if runCtx.Err() != nil || seq <= p.appliedSeq {
		p.mu.Unlock()
		logrus.WithField("seq", seq).Debug("discarding stale snapshot result")
		return
	}
	p.appliedSeq = seq
	handler := p.handler

	if fetchErr == nil {
		backedOff := p.interval != p.cfg.Interval
		p.failures = 0
		p.interval = p.cfg.Interval
		if backedOff {
			select {
			case p.reset <- struct{}{}:
			default:
			}
		}
		p.status = entity.ConnectionConnected
		p.mu.Unlock()

		handler.HandleSnapshot(normalizer.NormalizeSnapshot(raw))
		handler.HandleSnapshotStatus(entity.ConnectionConnected)
		return
	}

	p.failures++
	logger := logrus.WithFields(logrus.Fields{
		"failures": p.failures,
		"interval": p.interval.String(),
	})

	if IsNetworkError(fetchErr) && p.failures <= p.cfg.GraceFailures && p.status != entity.ConnectionDisconnected {
		p.status = entity.ConnectionConnecting
		p.mu.Unlock()

		logger.WithError(fetchErr).Warn("snapshot endpoint unreachable, retrying")
		handler.HandleSnapshotStatus(entity.ConnectionConnecting)
		return
	}

	p.status = entity.ConnectionDisconnected
	p.interval = nextInterval(p.interval, p.cfg.BackoffFactor, p.cfg.MaxInterval)
	logger = logger.WithField("next_interval", p.interval.String())
	p.mu.Unlock()

	logger.WithError(fetchErr).Error("snapshot fetch failed")
	handler.HandleSnapshotError(fetchErr)
	handler.HandleSnapshotStatus(entity.ConnectionDisconnected)
}

func nextInterval(current time.Duration, factor float64, ceiling time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > ceiling || next <= 0 {
		return ceiling
	}

	return next
}

// IsNetworkError reports whether err is a transport-level failure eligible for the grace
// period.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var fetchErr *entity.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind == entity.FetchErrorNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
