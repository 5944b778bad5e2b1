package response

import (
	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/pkg/errs"
)

// Envelope is the uniform JSON body every endpoint returns.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Success: false, Message: message})
}

// StatusOf maps a domain error kind to its HTTP status.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return fiber.StatusBadRequest
	case errs.KindNotFound:
		return fiber.StatusNotFound
	case errs.KindDuplicate, errs.KindInvalidState:
		return fiber.StatusConflict
	case errs.KindInsufficientStock, errs.KindNotAvailable, errs.KindNoStock:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError renders a domain error with its mapped status. Internal failures
// are masked with a generic message.
func FromError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal server error."
	}
	return Fail(c, status, msg)
}
