// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kahaani/config"
	"kahaani/pipeline"
)

const (
	GeneratePath = "/api/generate"
	HealthPath   = "/api/health"
	MetricsPath  = "/metrics"
)

// Generator runs one generation. *pipeline.Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

type Options struct {
	Config    *config.Config
	Generator Generator
	Logger    *log.Logger
	Version   string
	Clock     func() time.Time
}

type Server struct {
	engine    *gin.Engine
	cfg       *config.Config
	generator Generator
	logger    *log.Logger
	version   string
	now       func() time.Time
	started   time.Time
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("server: generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:    gin.New(),
		cfg:       opts.Config,
		generator: opts.Generator,
		logger:    opts.Logger,
		version:   opts.Version,
		now:       opts.Clock,
	}
	s.started = s.now()
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupMiddleware() {
	s.engine.Use(Recovery(s.logger))
	s.engine.Use(CORS(s.cfg.Server.AllowedOrigin))
	s.engine.Use(RequestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	s.engine.HandleMethodNotAllowed = true
	s.engine.NoMethod(methodNotAllowed)

	s.engine.POST(GeneratePath, s.generate)
	s.engine.OPTIONS(GeneratePath, func(c *gin.Context) { c.Status(http.StatusOK) })
	s.engine.GET(HealthPath, s.health)
	s.engine.GET(MetricsPath, gin.WrapH(promhttp.Handler()))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr, "env", s.cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
