package sink

import (
	"context"
	"errors"
	"time"

	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type snapshotSaver interface {
	Save(ctx context.Context, snapshot entity.DashboardSnapshot) error
}

// SnapshotMirror writes every applied snapshot through to a store.
type SnapshotMirror struct {
	store snapshotSaver
}

func NewSnapshotMirror(store snapshotSaver) *SnapshotMirror {
	return &SnapshotMirror{store: store}
}

func (s *SnapshotMirror) Name() string {
	return "snapshot_mirror"
}

func (s *SnapshotMirror) HandleEvent(ctx context.Context, event entity.SyncEvent) error {
	if event.Type != entity.SyncEventSnapshot || event.Snapshot == nil {
		return nil
	}

	return s.store.Save(ctx, *event.Snapshot)
}

type councilMessageCreator interface {
	Create(ctx context.Context, message entity.CouncilMessage) error
}

type activityLogCreator interface {
	Create(ctx context.Context, entry entity.LogEntry) error
}

// CouncilArchive appends council messages and, when configured, activity log entries to
// durable storage.
type CouncilArchive struct {
	messages councilMessageCreator
	logs     activityLogCreator
}

func NewCouncilArchive(messages councilMessageCreator, logs activityLogCreator) *CouncilArchive {
	return &CouncilArchive{messages: messages, logs: logs}
}

func (s *CouncilArchive) Name() string {
	return "council_archive"
}

func (s *CouncilArchive) HandleEvent(ctx context.Context, event entity.SyncEvent) error {
	switch {
	case event.Type == entity.SyncEventCouncilMessage && event.CouncilMessage != nil:
		return s.messages.Create(ctx, *event.CouncilMessage)
	case event.Type == entity.SyncEventLog && event.Log != nil && s.logs != nil:
		return s.logs.Create(ctx, *event.Log)
	default:
		return nil
	}
}

type publishFunc func(subject string, data any, opts ...nats.PubOpt) error

// CouncilPublisher republishes council messages and activity logs on JetStream.
type CouncilPublisher struct {
	js      nats.JetStreamContext
	publish publishFunc
}

func NewCouncilPublisher(js nats.JetStreamContext) *CouncilPublisher {
	return &CouncilPublisher{
		js: js,
		publish: func(subject string, data any, opts ...nats.PubOpt) error {
			return util.PublishEvent(js, subject, data, opts...)
		},
	}
}

func (s *CouncilPublisher) Name() string {
	return "council_publisher"
}

// JetstreamEventInit creates the council stream or updates it to the current config.
func (s *CouncilPublisher) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.CouncilStreamName,
		Subjects:  []string{constant.CouncilStreamSubjectAll},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
		// council message ids are reused as Nats-Msg-Id for dedup across reconnect replays
		Duplicates: 10 * time.Minute,
	}

	stream, err := s.js.StreamInfo(constant.CouncilStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.CouncilStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.CouncilStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	logrus.Infof("stream %s is ready", constant.CouncilStreamName)

	return nil
}

func (s *CouncilPublisher) HandleEvent(ctx context.Context, event entity.SyncEvent) error {
	switch {
	case event.Type == entity.SyncEventCouncilMessage && event.CouncilMessage != nil:
		return s.publish(constant.CouncilStreamSubjectMessage, event.CouncilMessage, nats.MsgId(event.CouncilMessage.ID), nats.Context(ctx))
	case event.Type == entity.SyncEventLog && event.Log != nil:
		return s.publish(constant.CouncilStreamSubjectActivity, event.Log, nats.Context(ctx))
	default:
		return nil
	}
}
