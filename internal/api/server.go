// Package api exposes the triage engine over HTTP: scoring, queue
// mutations, queue reads, history lookups, and the WebSocket feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/audit"
	"github.com/smart-triage-engine/internal/cache"
	"github.com/smart-triage-engine/internal/domain"
	"github.com/smart-triage-engine/pkg/advisory"
)

// Dependencies carries everything the server needs. Scorer, Queue, and
// History are required; the rest degrade gracefully when nil.
type Dependencies struct {
	Scorer    domain.RiskScorer
	Queue     domain.QueueManager
	History   domain.HistoryStore
	Snapshots domain.SnapshotCache
	Notifier  domain.Notifier
	Results   *cache.ResultCache
	Advisory  *advisory.Client
	Audit     *audit.Trail

	// WSHandler serves GET /ws when set.
	WSHandler gin.HandlerFunc
	// DBHealth reports history store connectivity for /health.
	DBHealth func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	cfg    *domain.Config
	deps   Dependencies
	log    *logrus.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeadersMiddleware())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))
	if cfg.Server.RateLimitRPS > 0 {
		router.Use(rateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateBurst))
	}

	server := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    logger,
		router: router,
	}
	server.setupRoutes()
	return server
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.deps.WSHandler != nil {
		s.router.GET("/ws", s.deps.WSHandler)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/triage/score", s.handleScore)

		v1.POST("/queue", s.handleCheckIn)
		v1.GET("/queue", s.handleListQueue)
		v1.GET("/queue/cached", s.handleCachedQueue)
		v1.GET("/queue/stats", s.handleQueueStats)
		v1.POST("/queue/sort", s.handleSortQueue)
		v1.GET("/queue/:id", s.handleGetEntry)
		v1.PATCH("/queue/:id", s.handleUpdateEntry)
		v1.DELETE("/queue/:id", s.handleRemoveEntry)
		v1.POST("/queue/:id/move-up", s.handleMoveUp)
		v1.POST("/queue/:id/move-down", s.handleMoveDown)

		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.GET("/patients/:id/assessments", s.handleListAssessments)

		v1.GET("/audit", s.handleAuditTrail)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	components := gin.H{}

	if s.deps.DBHealth != nil {
		if err := s.deps.DBHealth(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			components["database"] = err.Error()
		} else {
			components["database"] = "ok"
		}
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
		"version":    "1.0.0",
	})
}

// publishUpdate fans the post-mutation snapshot out to the WebSocket
// hub and the snapshot cache. Both are best-effort: a dead Redis or an
// empty hub never fails the mutation that triggered the publish.
func (s *Server) publishUpdate(ctx context.Context) {
	snapshot := s.deps.Queue.Snapshot()
	if s.deps.Notifier != nil {
		s.deps.Notifier.Broadcast(&snapshot)
	}
	if s.deps.Snapshots != nil {
		publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.deps.Snapshots.PublishSnapshot(publishCtx, &snapshot); err != nil {
			s.log.WithError(err).Warn("Failed to publish queue snapshot")
		}
	}
}

// respondError writes the standardized error envelope.
func (s *Server) respondError(c *gin.Context, status int, err error, message string) {
	requestID := c.GetString("request_id")
	engineErr := domain.NewEngineError(domain.CodeForError(err), message, err.Error(), requestID)
	c.JSON(status, gin.H{"error": engineErr})
}

// statusForError maps sentinel errors to HTTP status codes.
func statusForError(err error) int {
	switch domain.CodeForError(err) {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeDuplicateEntry:
		return http.StatusConflict
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
