package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"scrapPickup/internal/auth"
	"scrapPickup/internal/db"
	"scrapPickup/internal/logging"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"

	// ServiceName is the health service name reported alongside the overall status.
	ServiceName = "scrappickup"
)

// Server is the gRPC endpoint. It serves the standard health service, whose
// status follows the database health check.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	db       *sqlx.DB
	log      logrus.FieldLogger
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds the server with the authentication interceptors installed.
// Health methods bypass authentication.
func New(v auth.Verifier, d *sqlx.DB, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(v, healthCheckMethod)),
		grpc.StreamInterceptor(auth.NewStreamAuthInterceptor(v, healthWatchMethod)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{srv: srv, health: hs, db: d, log: log, interval: 15 * time.Second, stop: make(chan struct{})}
}

// Refresh probes the database once and publishes the result.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := db.Healthy(ctx, s.db); err != nil {
		s.log.WithError(err).Warn("database health check failed")
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	return st
}

// Serve publishes an initial status, starts the periodic probe and blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.Refresh(context.Background())
	go s.probe()
	return s.srv.Serve(lis)
}

func (s *Server) probe() {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Refresh(context.Background())
		}
	}
}

// Shutdown drains in-flight calls, forcing a stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
	})
	done := make(chan struct{})
	go func() { s.srv.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}

// StartGRPC starts the gRPC server on the given address and returns a shutdown function.
func StartGRPC(addr string, v auth.Verifier, d *sqlx.DB, log logrus.FieldLogger) (func(context.Context) error, error) {
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := New(v, d, log)
	go func() {
		if err := s.Serve(lis); err != nil {
			s.log.WithError(err).Error("grpc server stopped")
		}
	}()
	return s.Shutdown, nil
}
