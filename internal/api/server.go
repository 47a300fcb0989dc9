// Package api exposes the daemon's HTTP and WebSocket surface: a
// stateless, per-request view over the catalog, compose cache, and
// supervisor, with every mutation delegated to the orchestrator's
// single actor.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/devservers/devserversd/internal/apimetrics"
	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/compose"
	"github.com/devservers/devserversd/internal/orchestrator"
	"github.com/devservers/devserversd/internal/portregistry"
	"github.com/devservers/devserversd/internal/supervisor"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server holds everything a request handler needs. It carries no
// per-request state of its own; every handler re-reads the
// configuration file and the compose cache.
type Server struct {
	ConfigPath   string
	PortRegistry string
	Supervisor   *supervisor.Supervisor
	Compose      *compose.Loader
	Orchestrator *orchestrator.Orchestrator
	Metrics      *apimetrics.Metrics
	Log          *slog.Logger

	runtime *runtimeState
}

// NewServer fills in a default logger and metrics set and creates the
// server's runtime state. It does not register that state with the
// orchestrator's OnComposeStarted/OnComposeDetectedPort hooks, so the
// runtime state is never filled and compose-sourced services are listed
// without a detected port or last-started time. Call Router to obtain
// the gin engine to serve.
func NewServer(s *Server) *Server {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.Metrics == nil {
		s.Metrics = apimetrics.New()
	}
	s.runtime = newRuntimeState()
	return s
}

func (s *Server) snapshot() (catalog.Catalog, error) {
	c, err := catalog.Read(s.ConfigPath)
	if err != nil {
		return catalog.Catalog{}, err
	}
	var composeServices []catalog.Service
	if s.Compose != nil {
		composeServices = s.Compose.Services()
	}
	return catalog.Merge(c, composeServices)
}

// resolvedPortForDisplay returns the best-known port for a service for
// display purposes only (list/config), without allocating anything.
func (s *Server) resolvedPortForDisplay(svc catalog.Service) *int {
	switch svc.EffectivePortMode() {
	case catalog.PortModeDetect:
		if p, ok := s.runtime.detectedPort(svc.Name); ok {
			return &p
		}
		return svc.Port
	case catalog.PortModeRegistry:
		reg, err := portregistry.Read(s.PortRegistry, false)
		if err != nil {
			return svc.Port
		}
		if p, ok := reg.Services[svc.Name]; ok {
			return &p
		}
		return svc.Port
	default:
		return svc.Port
	}
}

func (s *Server) lastStartedAtForDisplay(svc catalog.Service) *time.Time {
	if svc.Source == catalog.SourceConfig {
		return svc.LastStartedAt
	}
	if t, ok := s.runtime.lastStartedAt(svc.Name); ok {
		return &t
	}
	return nil
}

// Router builds the gin engine implementing the full HTTP API surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(s.metricsMiddleware())
	r.Use(s.errorMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	r.GET("/services", s.handleListServices)
	r.GET("/services/:name/config", s.handleServiceConfig)
	r.POST("/services", s.handleUpsertService)
	r.PUT("/services/:name", s.handleUpsertServiceNamed)
	r.DELETE("/services/:name", s.handleDeleteService)
	r.POST("/services/:name/start", s.handleStart)
	r.POST("/services/:name/stop", s.handleStop)
	r.POST("/services/:name/restart", s.handleRestart)
	r.GET("/services/:name/logs", s.handleLogsWebSocket)

	r.GET("/projects", s.handleListProjects)
	r.POST("/projects", s.handleUpsertProject)
	r.DELETE("/projects/:name", s.handleDeleteProject)

	return r
}

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware stamps every request with a correlation ID,
// reusing one supplied by the client rather than minting a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := statusClass(c.Writer.Status())
		s.Metrics.RequestsTotal.WithLabelValues(route, status).Inc()
		s.Metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// syncCompose triggers a compose reconciliation against the current
// registered projects, as every mutating route's preamble requires.
func (s *Server) syncCompose(c catalog.Catalog) {
	if s.Compose != nil {
		s.Compose.Sync(c.RegisteredProjects)
	}
}

