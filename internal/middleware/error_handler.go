package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/pkg/response"
)

// ErrorHandler is the fiber app-level error handler. Domain errors map to
// their taxonomy status; everything else is a masked 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Fail(c, fe.Code, fe.Message)
	}

	status := response.StatusOf(err)
	if status == fiber.StatusInternalServerError && errs.KindOf(err) == errs.KindUnknown {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("unhandled error")
	}
	return response.FromError(c, err)
}
