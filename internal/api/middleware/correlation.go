package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

const (
	// CorrelationHeader is read from the request and echoed on every response.
	CorrelationHeader = "correlation-id"

	LocalCorrelationID = "correlation_id"
)

// RequestID reuses the caller's correlation-id header or generates a UUID.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     CorrelationHeader,
		Generator:  uuid.NewString,
		ContextKey: LocalCorrelationID,
	})
}

// Correlation copies the request id into the user context so services and
// their loggers can read it. Must run after RequestID.
func Correlation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(domain.WithCorrelationID(c.UserContext(), CorrelationID(c)))
		return c.Next()
	}
}

func CorrelationID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalCorrelationID).(string)
	return id
}
