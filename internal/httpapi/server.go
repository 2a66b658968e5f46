// Package httpapi serves health, metrics and store statistics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// StatsFunc reports a snapshot for /stats.
type StatsFunc func() any

// Server is the status HTTP server.
type Server struct {
	addr   string
	engine *gin.Engine
	ready  func() bool
}

// New builds the router. ready reports whether the platform session is up.
func New(addr string, ready func() bool, stats StatsFunc) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		status := "starting"
		code := http.StatusServiceUnavailable
		if ready == nil || ready() {
			status, code = "online", http.StatusOK
		}
		c.JSON(code, gin.H{"status": status})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/stats", func(c *gin.Context) {
		if stats == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, stats())
	})

	return &Server{addr: addr, engine: r, ready: ready}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("[HTTP] status server on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
