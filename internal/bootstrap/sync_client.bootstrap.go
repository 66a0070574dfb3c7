package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/krobus00/dashboard-sync/internal/config"
	"github.com/krobus00/dashboard-sync/internal/entity"
	dashboardHTTP "github.com/krobus00/dashboard-sync/internal/handler/dashboard/http"
	"github.com/krobus00/dashboard-sync/internal/infrastructure"
	"github.com/krobus00/dashboard-sync/internal/repository"
	"github.com/krobus00/dashboard-sync/internal/service/dashboard"
	"github.com/krobus00/dashboard-sync/internal/service/poller"
	"github.com/krobus00/dashboard-sync/internal/service/sink"
	"github.com/krobus00/dashboard-sync/internal/service/stream"
	"github.com/krobus00/dashboard-sync/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	councilDatabase    = "council"
	snapshotRedis      = "snapshot"
	subscriptionBuffer = 256
)

var errNoSnapshot = errors.New("no snapshot applied yet")

// sinkConnections are the optional outbound connections. Each one is nil when its config
// is empty.
type sinkConnections struct {
	db     *sqlx.DB
	mirror *repository.SnapshotMirrorRepository
	nc     *nats.Conn
	js     nats.JetStreamContext
}

func StartSyncClient(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	util.ContinueOrFatal(config.Env.Dashboard.Validate())

	snapshotClient := infrastructure.NewSnapshotClient(config.Env.Dashboard)
	syncService := dashboard.NewSyncService(snapshotClient, newDashboardConfig(config.Env.Dashboard))

	conns := openSinkConnections(ctx)

	grpcServer := infrastructure.NewGRPCServer()
	sinks := buildSinks(ctx, conns)
	sinks = append(sinks, sink.Func("grpc_health", func(ctx context.Context, event entity.SyncEvent) error {
		if event.Type == entity.SyncEventStatus || event.Type == entity.SyncEventSnapshot {
			grpcServer.SetHealth(syncService.Health().Status)
		}
		return nil
	}))

	events, unsubscribe := syncService.Subscribe(subscriptionBuffer)
	pump := sink.NewPump(0, sinks...)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		pump.Run(ctx, events)
	}()
	logrus.WithField("sinks", pump.Len()).Info("event pump started")

	syncService.Start(ctx)

	go func() {
		if err := grpcServer.Start(); err != nil {
			logrus.Error(err)
		}
	}()

	httpMux := http.NewServeMux()
	dashboardHTTP.NewDashboardHTTPHandler(syncService).Register(httpMux)

	httpConfig := infrastructure.DefaultHTTPServerConfig()
	httpConfig.ShutdownTimeout = config.Env.GracefulShutdownTimeout
	httpConfig.Readiness = func() error {
		if syncService.State().DashboardData == nil {
			return errNoSnapshot
		}
		return nil
	}
	httpServer := infrastructure.NewHTTPServer(httpConfig, httpMux)

	go func() {
		if err := httpServer.Start(); err != nil {
			logrus.Error(err)
		}
	}()

	go refreshOnSignal(ctx, syncService)

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout,
		shutdownStage{
			"dashboard sync": func(ctx context.Context) error {
				syncService.Stop()
				unsubscribe()
				<-pumpDone
				return nil
			},
		},
		shutdownStage{
			"http": func(ctx context.Context) error {
				return httpServer.Shutdown(ctx)
			},
			"grpc": func(ctx context.Context) error {
				return grpcServer.Shutdown(ctx)
			},
		},
		conns.closers(cancel),
	)

	<-wait
}

func newDashboardConfig(cfg config.DashboardConfig) dashboard.Config {
	headers := make(http.Header, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}

	return dashboard.Config{
		Poller: poller.Config{
			Interval:       cfg.PollInterval,
			MaxInterval:    cfg.MaxPollInterval,
			BackoffFactor:  cfg.BackoffFactor,
			GraceFailures:  cfg.GraceFailures,
			RequestTimeout: cfg.RequestTimeout,
		},
		Stream: stream.Config{
			URL:            cfg.StreamURL,
			Headers:        headers,
			ReconnectDelay: cfg.ReconnectDelay,
			PingInterval:   cfg.PingInterval,
		},
		LogCapacity:     cfg.LogCapacity,
		CouncilCapacity: cfg.CouncilCapacity,
	}
}

func openSinkConnections(ctx context.Context) sinkConnections {
	var conns sinkConnections

	if dbConfig, ok := config.Env.Database[councilDatabase]; ok && dbConfig.DSN != "" {
		db, err := infrastructure.NewPostgresConnection(ctx, councilDatabase, dbConfig)
		util.ContinueOrFatal(err)
		infrastructure.StartPostgresHealthCheck(ctx, db, dbConfig.PingInterval, nil)
		conns.db = db
	}

	if redisConfig, ok := config.Env.Redis[snapshotRedis]; ok && redisConfig.CacheDSN != "" {
		client, err := infrastructure.NewRedisClient(ctx, redisConfig)
		util.ContinueOrFatal(err)
		conns.mirror = repository.NewSnapshotMirrorRepository(client, redisConfig.Key, redisConfig.TTL)
	}

	if config.Env.NatsJetstream.URL != "" {
		nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
		util.ContinueOrFatal(err)
		conns.nc, conns.js = nc, js
	}

	return conns
}

func buildSinks(ctx context.Context, conns sinkConnections) []sink.Sink {
	sinks := make([]sink.Sink, 0, 4)

	if conns.mirror != nil {
		sinks = append(sinks, sink.NewSnapshotMirror(conns.mirror))
	}

	if conns.db != nil {
		sinks = append(sinks, sink.NewCouncilArchive(
			repository.NewCouncilMessageRepository(conns.db),
			repository.NewActivityLogRepository(conns.db),
		))
	}

	if conns.js != nil {
		publisher := sink.NewCouncilPublisher(conns.js)
		util.ContinueOrFatal(publisher.JetstreamEventInit(ctx))
		sinks = append(sinks, publisher)
	}

	return sinks
}

func (c sinkConnections) closers(cancel context.CancelFunc) shutdownStage {
	stage := shutdownStage{}
	if c.db != nil {
		stage["council database"] = func(ctx context.Context) error {
			cancel()
			return c.db.Close()
		}
	}
	if c.mirror != nil {
		stage["snapshot redis"] = func(ctx context.Context) error {
			return c.mirror.Close()
		}
	}
	if c.nc != nil {
		stage["nats connection"] = func(ctx context.Context) error {
			return infrastructure.CloseJetstream(c.nc)
		}
	}

	return stage
}

// refreshOnSignal triggers an out of band snapshot fetch on SIGUSR1.
func refreshOnSignal(ctx context.Context, syncService *dashboard.SyncService) {
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGUSR1)
	defer signal.Stop(s)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s:
			logrus.Info("manual refresh requested")
			if err := syncService.Refresh(ctx); err != nil {
				logrus.WithError(err).Warn("manual refresh failed")
			}
		}
	}
}
