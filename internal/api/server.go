package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/spaced_repetition"
)

// Server exposes read-only study data and health endpoints over HTTP
type Server struct {
	engine *gin.Engine
	users  *UserHandler
}

// New builds the router. The database must be connected.
func New(model *spaced_repetition.SM2, now func() time.Time) *Server {
	if model == nil {
		model = spaced_repetition.NewSM2()
	}
	if now == nil {
		now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware())

	s := &Server{engine: r, users: NewUserHandler(model, now)}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/users/:id/due", s.users.Due)
		api.GET("/users/:id/streak", s.users.Streak)
		api.GET("/users/:id/stats", s.users.Stats)
		api.GET("/users/:id/export", s.users.Export)
	}
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		log.Println("API server stopped")
		return nil
	}
}

// metricsMiddleware records the count and latency of every request
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
