// Package grpcapi serves the standard gRPC health protocol for the gate
// process and each of its stations.
package grpcapi

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StationService is the health service name for one station.
func StationService(stationID string) string {
	return "gate.station." + stationID
}

type Dependencies struct {
	Logger *log.Logger
	Addr   string
}

// Server reports SERVING for "" while the process runs and, per station,
// SERVING while it scans and NOT_SERVING otherwise.
type Server struct {
	addr   string
	logger *log.Logger
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Server{addr: d.Addr, logger: d.Logger, grpc: gs, health: hs}
}

// StationChanged implements service.StationObserver.
func (s *Server) StationChanged(stationID string, scanning bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if scanning {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(StationService(stationID), status)
}

// Serve blocks serving on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

// Shutdown marks every service NOT_SERVING and stops gracefully, or hard
// when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
