package sink

import (
	"context"
	"time"

	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/util"
	"github.com/sirupsen/logrus"
)

const defaultHandleTimeout = 5 * time.Second

// Sink receives state transitions from the sync service. Sinks only consume; nothing they
// do feeds back into the synchronized state.
type Sink interface {
	Name() string
	HandleEvent(ctx context.Context, event entity.SyncEvent) error
}

type funcSink struct {
	name string
	fn   func(ctx context.Context, event entity.SyncEvent) error
}

func Func(name string, fn func(ctx context.Context, event entity.SyncEvent) error) Sink {
	return &funcSink{name: name, fn: fn}
}

func (s *funcSink) Name() string {
	return s.name
}

func (s *funcSink) HandleEvent(ctx context.Context, event entity.SyncEvent) error {
	return s.fn(ctx, event)
}

// Pump delivers every event to every sink in order. A failing or slow sink is logged and
// skipped for that event.
type Pump struct {
	sinks   []Sink
	timeout time.Duration
}

func NewPump(timeout time.Duration, sinks ...Sink) *Pump {
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}

	return &Pump{sinks: sinks, timeout: timeout}
}

func (p *Pump) Len() int {
	return len(p.sinks)
}

// Run consumes events until the channel is closed or ctx is done.
func (p *Pump) Run(ctx context.Context, events <-chan entity.SyncEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.dispatch(ctx, event)
		}
	}
}

func (p *Pump) dispatch(ctx context.Context, event entity.SyncEvent) {
	for _, s := range p.sinks {
		err := util.ProcessWithTimeout(ctx, p.timeout, event, s.HandleEvent)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"sink":  s.Name(),
				"event": event.Type,
			}).WithError(err).Error("sink failed to handle event")
		}
	}
}
