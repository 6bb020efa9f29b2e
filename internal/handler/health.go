package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health check reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Dependency struct {
	Name   string
	Pinger Pinger
}

type KeyCounter interface {
	Count(ctx context.Context) (int64, error)
}

type HealthHandler struct {
	deps    []Dependency
	counter KeyCounter
	logger  *zap.Logger
}

func NewHealthHandler(counter KeyCounter, logger *zap.Logger, deps ...Dependency) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		counter: counter,
		logger:  logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	healthy := true
	statuses := gin.H{}
	for _, dep := range h.deps {
		status := "ok"
		if err := dep.Pinger.Ping(ctx); err != nil {
			status = "error"
			healthy = false
			h.logger.Error("Health check: dependency ping failed", zap.String("dependency", dep.Name), zap.Error(err))
		}
		statuses[dep.Name] = status
	}

	body := gin.H{
		"status":       "ok",
		"dependencies": statuses,
		"timestamp":    time.Now().UTC(),
	}
	if total, err := h.counter.Count(ctx); err == nil {
		body["totalKeys"] = total
	} else {
		h.logger.Warn("Health check: key count failed", zap.Error(err))
	}

	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
