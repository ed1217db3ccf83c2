package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/charadev96/ratewise/internal/server/handler/admin"
	"github.com/charadev96/ratewise/internal/server/handler/web"
	"github.com/charadev96/ratewise/internal/server/service"
	"github.com/charadev96/ratewise/internal/shared/log"
)

const defaultShutdownTimeout = 10 * time.Second

type AdminConfig struct {
	Addr   string
	Logger *zerolog.Logger
}

type WebConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	Logger          *zerolog.Logger
}

type Server struct {
	Admin AdminConfig
	Web   WebConfig

	AuthService *service.AuthService
	WebHandler  *web.Handler
}

// NewAdminServer builds the admin gRPC server with the session admin,
// health and reflection services registered.
func (s *Server) NewAdminServer() *grpc.Server {
	inst := grpc.NewServer()
	admin.RegisterSessionAdminServer(inst, &admin.SessionAdminHandler{
		Service: s.AuthService,
	})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(admin.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(inst, hs)

	reflection.Register(inst)
	return inst
}

func (s *Server) ServeAdmin(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Admin.Addr)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	return s.ServeAdminOn(ctx, ln)
}

// ServeAdminOn serves the admin API on ln until ctx is done.
func (s *Server) ServeAdminOn(ctx context.Context, ln net.Listener) error {
	logger := log.OrNop(s.Admin.Logger)
	logger.Info().
		Str("address", ln.Addr().String()).
		Msg("started server")

	inst := s.NewAdminServer()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		inst.GracefulStop()
	}()

	if err := inst.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) ServeWeb(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Web.Addr)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	return s.ServeWebOn(ctx, ln)
}

// ServeWebOn serves the public API on ln until ctx is done, then drains
// in-flight requests.
func (s *Server) ServeWebOn(ctx context.Context, ln net.Listener) error {
	logger := log.OrNop(s.Web.Logger)
	logger.Info().
		Str("address", ln.Addr().String()).
		Msg("started server")

	srv := &http.Server{
		Handler:           s.WebHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		timeout := s.Web.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		errc <- srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-errc; err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
