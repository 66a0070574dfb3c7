package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/krobus00/dashboard-sync/internal/buffer"
	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/service/poller"
	"github.com/krobus00/dashboard-sync/internal/service/stream"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Poller          poller.Config
	Stream          stream.Config
	LogCapacity     int
	CouncilCapacity int
}

// State is an immutable copy of the synchronized view. Slices are shared with the service
// and must not be modified.
type State struct {
	Health           entity.Health             `json:"health"`
	DashboardData    *entity.DashboardSnapshot `json:"dashboardData"`
	Loading          bool                      `json:"loading"`
	Error            null.String               `json:"error"`
	Logs             []entity.LogEntry         `json:"logs"`
	ConnectionStatus entity.ConnectionState    `json:"connectionStatus"`
	CouncilMessages  []entity.CouncilMessage   `json:"councilMessages"`
	CouncilStatus    entity.ConnectionState    `json:"councilStatus"`
}

// SyncService owns the snapshot poller and the council stream and is the only writer of the
// synchronized state.
type SyncService struct {
	fetcher poller.Fetcher
	cfg     Config

	mu             sync.Mutex
	poller         *poller.Poller
	stream         *stream.Client
	snapshot       *entity.DashboardSnapshot
	resolved       bool
	refreshing     int
	lastError      null.String
	logs           buffer.Bounded[entity.LogEntry]
	council        buffer.Bounded[entity.CouncilMessage]
	snapshotStatus entity.ConnectionState
	streamStatus   entity.ConnectionState
	lastSnapshotAt null.Time
	lastMessageAt  null.Time
	subscribers    map[int]chan entity.SyncEvent
	nextSubscriber int
}

func NewSyncService(fetcher poller.Fetcher, cfg Config) *SyncService {
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = constant.DefaultLogCapacity
	}
	if cfg.CouncilCapacity <= 0 {
		cfg.CouncilCapacity = constant.DefaultCouncilCapacity
	}

	return &SyncService{
		fetcher:        fetcher,
		cfg:            cfg,
		logs:           buffer.New[entity.LogEntry](cfg.LogCapacity),
		council:        buffer.New[entity.CouncilMessage](cfg.CouncilCapacity),
		snapshotStatus: entity.ConnectionConnecting,
		streamStatus:   entity.ConnectionDisconnected,
		subscribers:    make(map[int]chan entity.SyncEvent),
	}
}

// Start activates both channels. They run independently; neither blocks the other.
func (s *SyncService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.poller != nil {
		s.mu.Unlock()
		return
	}

	s.poller = poller.NewPoller(s.fetcher, s.cfg.Poller)
	s.stream = stream.NewClient(s.cfg.Stream)
	p, c := s.poller, s.stream
	s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "dashboard sync started", Type: entity.LogTypeInfo})
	s.mu.Unlock()

	p.Start(s)
	c.Connect(ctx, s)
}

// Stop tears down the poll timer first, then the socket and its pending reconnection, and
// finally closes every subscription.
func (s *SyncService) Stop() {
	s.mu.Lock()
	p, c := s.poller, s.stream
	s.mu.Unlock()

	if p == nil {
		return
	}

	p.Stop()
	c.Disconnect()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.poller = nil
	s.stream = nil
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Refresh fetches a snapshot out of band. loading stays true while it is in flight.
func (s *SyncService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	p := s.poller
	if p == nil {
		s.mu.Unlock()
		return poller.ErrNotRunning
	}
	s.refreshing++
	s.emitStatus()
	s.mu.Unlock()

	err := p.RefreshNow(ctx)

	s.mu.Lock()
	s.refreshing--
	s.emitStatus()
	s.mu.Unlock()

	return err
}

func (s *SyncService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Health:           s.health(),
		DashboardData:    s.snapshot,
		Loading:          s.loading(),
		Error:            s.lastError,
		Logs:             s.logs.Items(),
		ConnectionStatus: s.snapshotStatus,
		CouncilMessages:  s.council.Items(),
		CouncilStatus:    s.streamStatus,
	}
}

func (s *SyncService) Health() entity.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health()
}

// Subscribe returns a channel of state transitions. Events are dropped for a subscriber
// whose buffer is full. The channel is closed by the returned cancel func or by Stop.
func (s *SyncService) Subscribe(size int) (<-chan entity.SyncEvent, func()) {
	if size <= 0 {
		size = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubscriber
	s.nextSubscriber++
	ch := make(chan entity.SyncEvent, size)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

func (s *SyncService) HandleSnapshot(snapshot entity.DashboardSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshotStatus != entity.ConnectionConnected {
		s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "snapshot channel connected", Type: entity.LogTypeSuccess})
	}

	s.snapshot = &snapshot
	s.resolved = true
	s.lastError = null.String{}
	s.lastSnapshotAt = null.TimeFrom(time.Now().UTC())

	s.emit(entity.SyncEvent{Type: entity.SyncEventSnapshot, Snapshot: s.snapshot})
}

func (s *SyncService) HandleSnapshotError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolved = true
	s.lastError = null.StringFrom(err.Error())
	s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "snapshot fetch failed: " + err.Error(), Type: entity.LogTypeError})

	s.emit(entity.SyncEvent{Type: entity.SyncEventError, Error: err.Error()})
}

func (s *SyncService) HandleSnapshotStatus(status entity.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshotStatus == status {
		return
	}
	if status == entity.ConnectionConnecting && s.snapshotStatus == entity.ConnectionConnected {
		s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "snapshot endpoint unreachable, retrying", Type: entity.LogTypeWarning})
	}

	logrus.WithFields(logrus.Fields{
		"from": s.snapshotStatus,
		"to":   status,
	}).Info("snapshot channel status changed")

	s.snapshotStatus = status
	s.emitStatus()
}

func (s *SyncService) HandleStreamStatus(status entity.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamStatus == status {
		return
	}

	switch {
	case status == entity.ConnectionConnected:
		s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "council feed connected", Type: entity.LogTypeSuccess})
	case status == entity.ConnectionDisconnected && s.streamStatus == entity.ConnectionConnected:
		s.pushLog(entity.LogEntry{Timestamp: time.Now().UTC(), Message: "council feed disconnected", Type: entity.LogTypeWarning})
	}

	s.streamStatus = status
	s.emitStatus()
}

func (s *SyncService) HandleCouncilMessage(message entity.CouncilMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.council = s.council.Push(message)
	s.lastMessageAt = null.TimeFrom(time.Now().UTC())

	s.emit(entity.SyncEvent{Type: entity.SyncEventCouncilMessage, CouncilMessage: &message})
}

func (s *SyncService) HandleStreamLog(entry entity.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLog(entry)
}

func (s *SyncService) pushLog(entry entity.LogEntry) {
	s.logs = s.logs.Push(entry)
	s.emit(entity.SyncEvent{Type: entity.SyncEventLog, Log: &entry})
}

func (s *SyncService) loading() bool {
	return !s.resolved || s.refreshing > 0
}

func (s *SyncService) health() entity.Health {
	interval := s.cfg.Poller.Interval
	failures := 0
	if s.poller != nil {
		interval = s.poller.Interval()
		failures = s.poller.ConsecutiveFailures()
	}
	if interval <= 0 {
		interval = constant.DefaultPollInterval
	}

	return entity.Health{
		Status:              entity.DeriveHealth(s.snapshotStatus),
		SnapshotStatus:      s.snapshotStatus,
		StreamStatus:        s.streamStatus,
		ConsecutiveFailures: failures,
		PollIntervalMs:      interval.Milliseconds(),
		LastSnapshotAt:      s.lastSnapshotAt,
		LastMessageAt:       s.lastMessageAt,
	}
}

func (s *SyncService) emitStatus() {
	s.emit(entity.SyncEvent{Type: entity.SyncEventStatus})
}

// emit must be called with mu held.
func (s *SyncService) emit(event entity.SyncEvent) {
	event.ConnectionStatus = s.snapshotStatus
	event.CouncilStatus = s.streamStatus
	event.At = time.Now().UTC()

	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
