package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/elskow/tourfurr/internal/api"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/ratelimit"
)

// ServiceName is reported by the gRPC health service.
const ServiceName = "tourfurr.api"

// Pinger reports whether a dependency is reachable; *database.Manager
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	db         Pinger
}

type Params struct {
	fx.In

	Config   *config.AppConfig
	Logger   *zap.Logger
	Throttle *ratelimit.Throttle
	Database Pinger
	Routes   []RouteRegistrar `group:"routes"`
}

func NewServer(p Params) *Server {
	s := &Server{
		config: p.Config,
		log:    p.Logger,
		health: health.NewServer(),
		db:     p.Database,
	}

	s.router = NewRouter(p.Config, p.Logger, p.Throttle, s.Health, p.Routes...)
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(p.Config.Server.Host, p.Config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	if p.Config.GRPC.EnableReflection {
		reflection.Register(s.grpcServer)
	}

	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Health answers the HTTP health probe, checking the database when one is
// wired.
func (s *Server) Health(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			api.Fail(c, http.StatusServiceUnavailable, "Database unavailable", gin.H{"status": "degraded"})
			return
		}
	}
	api.OK(c, http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Start binds both listeners and serves in the background. Bind errors are
// returned so startup fails fast.
func (s *Server) Start() error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcAddr := net.JoinHostPort(s.config.GRPC.Host, s.config.GRPC.Port)
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.log.Info("Starting servers",
		zap.String("http_address", httpLis.Addr().String()),
		zap.String("grpc_address", grpcLis.Addr().String()),
		zap.Object("config", serverConfigToField(s.config)),
	)

	go func() {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			s.log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", config.Env)
		enc.AddString("public_url", config.Server.PublicURL)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddInt64("max_body_bytes", config.Server.MaxBodyBytes)
		enc.AddBool("csrf_enabled", config.Auth.CSRFEnabled)
		enc.AddBool("turnstile_enabled", config.Turnstile.Enabled)
		return nil
	})
}

// Stop drains HTTP requests and gRPC calls within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down servers")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	err := s.httpServer.Shutdown(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	return err
}
