// Package api exposes the scoring engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/config"
	"github.com/onco-efficacy-engine/internal/domain"
	"github.com/onco-efficacy-engine/internal/registry"
	"github.com/onco-efficacy-engine/internal/service"
)

// HealthChecker reports collaborator circuit-breaker states for the health
// endpoint.
type HealthChecker interface {
	CircuitBreakerStates() map[string]string
}

// DatabasePinger checks connectivity of the calibration snapshot database.
type DatabasePinger interface {
	Health(ctx context.Context) error
}

// Server is the HTTP front of the scoring engine.
type Server struct {
	cfg          config.ServerConfig
	orchestrator *service.Orchestrator
	registry     *registry.Registry
	tablesPath   string
	health       HealthChecker
	db           DatabasePinger
	router       *gin.Engine
	server       *http.Server
	log          *logrus.Logger
}

// NewServer creates the HTTP server. health may be nil.
func NewServer(
	cfg *config.Config,
	orchestrator *service.Orchestrator,
	reg *registry.Registry,
	health HealthChecker,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:          cfg.Server,
		orchestrator: orchestrator,
		registry:     reg,
		tablesPath:   cfg.Scoring.TablesPath,
		health:       health,
		router:       router,
		log:          logger,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// SetDatabasePinger enables the database connectivity check on the health
// endpoint. Only set when the calibration store runs on Postgres.
func (s *Server) SetDatabasePinger(db DatabasePinger) {
	s.db = db
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/score", s.handleScore)
		v1.GET("/panel", s.handlePanel)
		v1.POST("/reload", s.handleReload)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"schema_version": domain.SchemaVersion,
		"tables_version": s.registry.Current().Version,
	}
	if s.health != nil {
		body["circuit_breakers"] = s.health.CircuitBreakerStates()
	}
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "healthy"
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleScore(c *gin.Context) {
	var req domain.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	resp, err := s.orchestrator.Score(c.Request.Context(), &req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
			return
		}
		s.log.WithError(err).Error("Scoring run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handlePanel returns the active drug panel, optionally filtered by disease.
func (s *Server) handlePanel(c *gin.Context) {
	tables := s.registry.Current()
	disease := c.Query("disease")

	c.JSON(http.StatusOK, gin.H{
		"tables_version": tables.Version,
		"disease":        disease,
		"drugs":          tables.PanelForDisease(disease),
	})
}

// handleReload swaps in freshly loaded scoring tables. With no configured
// tables file the built-in defaults are re-stamped under a new version.
func (s *Server) handleReload(c *gin.Context) {
	err := s.registry.Reload(func() (*registry.ScoringTables, error) {
		if s.tablesPath == "" {
			return registry.DefaultTables(), nil
		}
		return registry.LoadFile(s.tablesPath)
	})
	if err != nil {
		s.log.WithError(err).Error("Scoring tables reload failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tables_version": s.registry.Current().Version})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
