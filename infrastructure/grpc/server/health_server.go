package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the messaging core. The empty
// name reports the same status.
const ServiceName = "chat.rooms"

// Check returns nil while the process can serve traffic.
type Check func() error

// HealthServer exposes the standard gRPC health protocol. Its Run loop polls
// the check and flips the serving status, so it is supervised like any
// other worker.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	ready      Check
	interval   time.Duration
	log        *slog.Logger
}

func NewHealthServer(ready Check, interval time.Duration, log *slog.Logger) *HealthServer {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &HealthServer{
		grpcServer: grpcServer,
		health:     healthServer,
		ready:      ready,
		interval:   interval,
		log:        log,
	}
	s.check()
	return s
}

func (s *HealthServer) Serve(listener net.Listener) error {
	s.log.Info("gRPC health listening", "addr", listener.Addr().String())
	return s.grpcServer.Serve(listener)
}

func (s *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.check()
		}
	}
}

// Stop reports NOT_SERVING to watchers before closing the listener.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *HealthServer) check() {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.ready(); err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		s.log.Warn("Health check failed", "error", err)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
