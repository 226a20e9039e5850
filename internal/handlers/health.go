package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

// Pinger is satisfied by the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *drift.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check: database unreachable")
		_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
