package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/worker"
)

const Version = "0.1.0"

// PoolStats reports worker pool occupancy; satisfied by *worker.Pool.
type PoolStats interface {
	Stats() worker.Stats
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Readier is satisfied by model backends reached over the network.
type Readier interface {
	Ready(ctx context.Context) error
}

type HealthHandler struct {
	pool     PoolStats
	audit    Pinger
	embedder Readier
}

// NewHealthHandler creates the health handler; audit may be nil when events
// are only logged, embedder when the model runs in-process.
func NewHealthHandler(pool PoolStats, audit Pinger, embedder Readier) *HealthHandler {
	return &HealthHandler{pool: pool, audit: audit, embedder: embedder}
}

type HealthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version,omitempty"`
	Workers  *worker.Stats `json:"workers,omitempty"`
	Audit    string        `json:"audit,omitempty"`
	Embedder string        `json:"embedder,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready reports pool occupancy and, when configured, the audit database and
// the remote embedder. Any unreachable dependency fails the check.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "ready"}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Workers = &stats
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	healthy := true
	if h.audit != nil {
		resp.Audit = "ok"
		if err := h.audit.Ping(ctx); err != nil {
			resp.Audit = "unreachable"
			healthy = false
		}
	}
	if h.embedder != nil {
		resp.Embedder = "ok"
		if err := h.embedder.Ready(ctx); err != nil {
			resp.Embedder = "unreachable"
			healthy = false
		}
	}

	if !healthy {
		resp.Status = "unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
