package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"forum/internal/lib/sl"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	log    *slog.Logger
	pinger Pinger
}

func NewHealthHandler(log *slog.Logger, pinger Pinger) *HealthHandler {
	return &HealthHandler{log: log, pinger: pinger}
}

func (h *HealthHandler) Healthcheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.log.Warn("storage unreachable", sl.Err(err))
		respond(c, http.StatusServiceUnavailable, gin.H{"storage": "unavailable"}, "Service unavailable")
		return
	}

	respond(c, http.StatusOK, gin.H{"storage": "ok"}, "OK")
}
