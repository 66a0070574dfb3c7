package infrastructure

import (
	"context"
	"errors"
	"net"

	"github.com/krobus00/dashboard-sync/internal/config"
	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer exposes grpc.health.v1 for the sync service.
type GRPCServer struct {
	addr   string
	server *grpc.Server
	health *health.Server
}

func NewGRPCServer() *GRPCServer {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	if config.Env != nil && config.Env.Env != constant.ProductionEnvironment {
		reflection.Register(server)
	}

	healthServer.SetServingStatus(constant.GRPCHealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		addr:   resolvePortAddr("grpc", defaultGRPCAddr),
		server: server,
		health: healthServer,
	}
}

func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}

	return g.Serve(lis)
}

func (g *GRPCServer) Serve(lis net.Listener) error {
	logrus.WithField("addr", lis.Addr().String()).Info("grpc server starting")
	err := g.server.Serve(lis)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

// SetHealth maps the derived dashboard health onto the grpc serving status. Degraded still
// counts as serving.
func (g *GRPCServer) SetHealth(status entity.HealthStatus) {
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if status == entity.HealthOffline {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}

	g.health.SetServingStatus(constant.GRPCHealthService, servingStatus)
}

func (g *GRPCServer) Shutdown(ctx context.Context) error {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()
		return ctx.Err()
	}
}
