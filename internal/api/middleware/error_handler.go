package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	Error         string `json:"error"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		correlationID := CorrelationID(c)

		// Check if it's a Fiber error
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				StatusCode:    fiberErr.Code,
				Error:         fiberErr.Message,
				CorrelationID: correlationID,
			})
		}

		// Check if it's our AppError
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			if appErr.StatusCode >= 500 {
				logger.Error("internal error",
					slog.String("code", appErr.Code),
					slog.String("message", appErr.Message),
					slog.Any("error", appErr.Err),
					slog.String("correlation_id", correlationID),
				)
			}

			return c.Status(appErr.StatusCode).JSON(ErrorResponse{
				StatusCode:    appErr.StatusCode,
				Error:         appErr.Message,
				Details:       appErr.Details(),
				CorrelationID: correlationID,
			})
		}

		// Unknown error - surface the cause in details so it can be traced
		logger.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Path()),
			slog.String("correlation_id", correlationID),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			StatusCode:    fiber.StatusInternalServerError,
			Error:         domain.ErrInternal.Message,
			Details:       err.Error(),
			CorrelationID: correlationID,
		})
	}
}
