package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// HealthHandler answers liveness probes
type HealthHandler struct {
	db      Pinger
	cache   func(context.Context) error
	version string
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, now: time.Now}
}

// WithCacheCheck adds the cache to the report. The cache only accelerates
// reads, so a failing cache degrades the status without failing the probe.
func (h *HealthHandler) WithCacheCheck(check func(context.Context) error) *HealthHandler {
	h.cache = check
	return h
}

// Check reports service, database and cache health
func (h *HealthHandler) Check(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"time":     h.now().UTC().Format(time.RFC3339),
		"version":  h.version,
		"database": "ok",
	}
	if h.cache != nil {
		body["cache"] = "ok"
		if err := h.cache(c.Request.Context()); err != nil {
			logger.GetGinLogger(c).Warn("Cache health check failed", zap.Error(err))
			body["status"] = "degraded"
			body["cache"] = "error"
		}
	}

	if err := h.db.Ping(); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		body["status"] = "unhealthy"
		body["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
