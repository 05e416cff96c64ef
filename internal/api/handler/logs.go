package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

const maxLogsLimit = 1000

// EventReader is satisfied by *audit.PostgresLogger
type EventReader interface {
	Events(ctx context.Context, msgType string, limit int) ([]audit.Record, error)
}

type LogsHandler struct {
	events EventReader
	logger *slog.Logger
}

func NewLogsHandler(events EventReader, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{
		events: events,
		logger: logger,
	}
}

type LogsResponse struct {
	Events []audit.Record `json:"events"`
	Count  int            `json:"count"`
}

// List GET /logs?msg_type=threshold&limit=50
func (h *LogsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > maxLogsLimit {
		return domain.ErrValidationFailed.WithMessage("limit must be between 1 and %d", maxLogsLimit)
	}

	records, err := h.events.Events(c.UserContext(), c.Query("msg_type"), limit)
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}

	return c.JSON(LogsResponse{
		Events: records,
		Count:  len(records),
	})
}
