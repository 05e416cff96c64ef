package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/service"
)

type ThresholdService interface {
	Threshold() float64
	SetThreshold(ctx context.Context, value float64) error
}

type ThresholdHandler struct {
	service ThresholdService
	logger  *slog.Logger
}

func NewThresholdHandler(service ThresholdService, logger *slog.Logger) *ThresholdHandler {
	return &ThresholdHandler{
		service: service,
		logger:  logger,
	}
}

type SetThresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

type SetThresholdResponse struct {
	Message string `json:"message"`
}

type ThresholdResponse struct {
	Threshold float64 `json:"threshold"`
}

// Set POST /set_threshold
func (h *ThresholdHandler) Set(c *fiber.Ctx) error {
	var req SetThresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}
	if req.Threshold == nil {
		return domain.ErrValidationFailed.WithError(errors.New("threshold is required"))
	}

	if err := h.service.SetThreshold(c.UserContext(), *req.Threshold); err != nil {
		return err
	}

	return c.JSON(SetThresholdResponse{
		Message: "Threshold updated to " + service.FormatThreshold(*req.Threshold),
	})
}

// Get GET /threshold
func (h *ThresholdHandler) Get(c *fiber.Ctx) error {
	return c.JSON(ThresholdResponse{Threshold: h.service.Threshold()})
}
