// Package http is the Fiber transport of the auth service.
package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Auth               *AuthHandler
	Health             *HealthHandler
	Service            AuthService
	Metrics            nethttp.Handler
	RateLimitPerMinute int
	Logger             logging.Logger
}

// NewApp creates a Fiber app whose unhandled errors go through writeError.
func NewApp(logger logging.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gophauth",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return message(c, fe.Code, fe.Message)
			}
			return writeError(context.Background(), c, logger, err)
		},
	})
	app.Use(fiberrecover.New())
	app.Use(RequestLogger(logger))
	return app
}

// Register wires all routes onto app.
func Register(app *fiber.App, d Deps) {
	app.Get("/health", d.Health.Health)
	app.Get("/ready", d.Health.Ready)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}

	loginLimit := RateLimit(d.RateLimitPerMinute)
	mailLimit := RateLimit(d.RateLimitPerMinute)

	a := app.Group("/api/auth")
	a.Post("/register", d.Auth.Register)
	a.Post("/login", loginLimit, d.Auth.Login)
	a.Post("/logout", d.Auth.Logout)
	a.Post("/forgot-password", mailLimit, d.Auth.ForgotPassword)
	a.Post("/send-reset-password-email", mailLimit, d.Auth.SendResetPasswordEmail)
	a.Post("/reset-password", d.Auth.ResetPassword)
	a.Post("/verify-email", d.Auth.VerifyEmail)
	a.Post("/resend-verification-email", mailLimit, d.Auth.ResendVerificationEmail)
	a.Get("/me", RequireAuth(d.Service, d.Logger), d.Auth.Me)
}
