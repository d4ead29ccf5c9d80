package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type ValidationResponse struct {
	Errors []common.FieldError `json:"errors"`
}

type UserResponse struct {
	ID            string `json:"id"`
	UserName      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
}

type SessionResponse struct {
	Message   string       `json:"message"`
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(MessageResponse{Message: msg})
}

// writeError is the only place where an operation error becomes a response.
// Causes are logged and never sent to the client.
func writeError(ctx context.Context, c *fiber.Ctx, logger logging.Logger, err error) error {
	var e *common.Error
	if !errors.As(err, &e) {
		e = common.ErrorInternal.WithCause(err)
	}

	switch e.Kind {
	case common.KindValidation:
		fields := e.Fields
		if fields == nil {
			fields = []common.FieldError{}
		}
		return c.Status(fiber.StatusBadRequest).JSON(ValidationResponse{Errors: fields})
	case common.KindDuplicateUser:
		return message(c, fiber.StatusConflict, e.Message)
	case common.KindInvalidCredentials:
		return message(c, fiber.StatusUnauthorized, e.Message)
	case common.KindUnauthenticated:
		return message(c, fiber.StatusUnauthorized, e.Message)
	case common.KindInvalidOrExpiredToken:
		return message(c, fiber.StatusBadRequest, e.Message)
	case common.KindConfig:
		logger.Error(ctx, "configuration error", "path", c.Path(), "error", e.Cause)
		return message(c, fiber.StatusInternalServerError, common.ErrConfig.Message)
	case common.KindTransientStore:
		logger.Error(ctx, "store unavailable", "path", c.Path(), "error", e.Cause)
		return message(c, fiber.StatusServiceUnavailable, common.ErrTransientStore.Message)
	default:
		logger.Error(ctx, "internal error", "path", c.Path(), "error", err)
		return message(c, fiber.StatusInternalServerError, common.ErrorInternal.Message)
	}
}
