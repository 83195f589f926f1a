package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payment-matcher/internal/domain"
)

// Matcher is the part of the matching usecase the API exposes.
type Matcher interface {
	MatchByID(ctx context.Context, id string) domain.MatchingResult
	MatchBatchByID(ctx context.Context, ids []string) *domain.BatchReport
	MatchUnmatched(ctx context.Context, limit int, save bool) (*domain.BatchReport, error)
}

// Server is the matcher HTTP API.
type Server struct {
	matcher Matcher
	router  *gin.Engine
	log     *zap.Logger
}

// NewServer creates a new API server.
func NewServer(matcher Matcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		matcher: matcher,
		router:  router,
		log:     log,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/registrations/:id/match", s.handleMatchOne)
		api.POST("/batch", s.handleBatch)
		api.POST("/unmatched", s.handleUnmatched)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
