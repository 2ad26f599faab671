package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/common"
)

// Envelope is the one JSON shape every endpoint responds with.
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  []common.FieldError `json:"errors,omitempty"`
}

func (s *Server) ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

// fail maps a service error onto a status code and envelope. Unknown errors
// become a generic 500; details are logged, never surfaced.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(Envelope{Message: "validation failed", Errors: ve.Fields})
	case errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired):
		// the exact message tells clients whether a refresh is worth trying
		return c.Status(fiber.StatusUnauthorized).JSON(Envelope{Message: err.Error()})
	case errors.Is(err, common.ErrorUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(Envelope{Message: "unauthorized"})
	case errors.Is(err, common.ErrorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(Envelope{Message: "not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(Envelope{Message: "already exists"})
	default:
		s.logger.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(Envelope{Message: "internal server error"})
	}
}
