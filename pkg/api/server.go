// Package api serves the HTTP status surface: a liveness endpoint and a
// snapshot of the Authoring session. MCP traffic stays on stdio; this server
// only exists for operators and supervisors polling the bridge.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wwise-tools/wwise-mcp/pkg/session"
	"github.com/wwise-tools/wwise-mcp/pkg/version"
)

// StatusSource provides the session snapshot served on /status.
// Implemented by *session.Session.
type StatusSource interface {
	Status() session.Status
}

// Server is the HTTP status server.
type Server struct {
	source StatusSource
	http   *http.Server
	log    *slog.Logger
}

func NewServer(addr string, source StatusSource) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		source: source,
		log:    slog.With("component", "status_api"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", s.healthHandler)
	router.GET("/status", s.statusHandler)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("status api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "wwise-mcp",
		"version": version.GitCommit,
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Status())
}
