// Package server exposes the sync trigger and avatar resolution over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docs_syncer/internal/domain"
)

// Syncer runs one reconciliation pass.
type Syncer interface {
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

// AvatarResolver maps user ids to avatar URLs.
type AvatarResolver interface {
	ResolveAvatars(ctx context.Context, userIDs []string) (map[string]*string, error)
}

type Server struct {
	engine     *gin.Engine
	syncer     Syncer
	avatars    AvatarResolver
	syncSecret string
	logger     *slog.Logger
}

func New(syncer Syncer, avatars AvatarResolver, syncSecret string, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     gin.New(),
		syncer:     syncer,
		avatars:    avatars,
		syncSecret: syncSecret,
		logger:     logger.With("component", "http_server"),
	}

	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/api/sync", s.requireSyncSecret(), s.handleSync)
	s.engine.POST("/api/avatars", s.handleAvatars)

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.engine.Run(addr)
}

// requireSyncSecret rejects the request before any collaborator is
// touched unless the bearer token matches the configured secret.
func (s *Server) requireSyncSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.syncSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSync(c *gin.Context) {
	stats, err := s.syncer.Sync(c.Request.Context())
	if err != nil {
		s.logger.Error("sync run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 200 does not imply zero per-item errors; callers must inspect
	// the errors list.
	errors := stats.Errors
	if errors == nil {
		errors = []domain.ItemError{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   stats.Upserted,
		"deleted": stats.Deleted,
		"errors":  errors,
	})
}

func (s *Server) handleAvatars(c *gin.Context) {
	var userIDs []string
	if err := c.ShouldBindJSON(&userIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON array of user ids"})
		return
	}
	if len(userIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id list must not be empty"})
		return
	}

	result, err := s.avatars.ResolveAvatars(c.Request.Context(), userIDs)
	if err != nil {
		s.logger.Error("avatar resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
