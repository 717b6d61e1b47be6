// Package api exposes the monitor over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxGoroutines     = 1000
)

type Server struct {
	deps   Deps
	log    logger.Logger
	health healthcheck.Handler
	engine *gin.Engine
	http   *http.Server
}

func New(addr string, deps Deps, log logger.Logger) (*Server, error) {
	errFactory := errors.New()

	if deps.Controller == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "controller is required")
	}
	if deps.History == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "history is required")
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		deps:   deps,
		log:    log,
		engine: gin.New(),
		health: healthcheck.NewHandler(),
	}
	s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	if deps.Readiness != nil {
		s.health.AddReadinessCheck("network", deps.Readiness)
	}
	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.routes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/status", s.getStatus)
	s.engine.POST("/start", s.postStart)
	s.engine.POST("/stop", s.postStop)
	s.engine.POST("/interval", s.postInterval)
	s.engine.GET("/healthz", gin.WrapF(s.health.ReadyEndpoint))
	s.engine.GET("/livez", gin.WrapF(s.health.LiveEndpoint))
	s.engine.GET("/history", s.getHistory)

	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	if s.deps.Hub != nil {
		s.engine.GET("/ws", s.deps.Hub.handle)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errFactory.Wrap(ErrServe, err)
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Control API listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(ErrServe, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(ErrShutdown, err)
	}

	s.log.Info().Msg("Control API stopped")

	return nil
}
