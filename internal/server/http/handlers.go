package http

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const (
	MsgUserCreated      = "User created successfully"
	MsgLoggedIn         = "Login successful"
	MsgLoggedOut        = "Logged out successfully"
	MsgAlreadyRevoked   = "Token already blacklisted"
	MsgResetLinkSent    = "If an account with that email exists, a password reset link has been sent"
	MsgPasswordReset    = "Password has been reset successfully"
	MsgEmailVerified    = "Email verified successfully"
	MsgVerificationSent = "Verification email sent"
	MsgInvalidJSON      = "Invalid JSON payload"
	MsgTooManyRequests  = "Too many requests"
	localsSession       = "session"
)

// AuthService is the auth core as seen by the transport.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*services.Session, error)
	Login(ctx context.Context, identifier, password string) (*services.Session, error)
	Logout(ctx context.Context, token string) (bool, error)
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	SendResetPasswordEmail(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerificationEmail(ctx context.Context, email string) error
}

// Validator checks request payloads before they reach AuthService.
type Validator interface {
	Registration(ctx context.Context, username, email *string, password string) error
	Login(identifier, password string) error
	Email(email *string) error
	ResetPassword(token *string, password string) error
	Token(token *string) error
	ResendVerification(ctx context.Context, email *string) error
}

type AuthHandler struct {
	svc       AuthService
	validator Validator
	logger    logging.Logger
}

func NewAuthHandler(svc AuthService, v Validator, logger logging.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, validator: v, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) fail(c *fiber.Ctx, err error) error {
	return writeError(c.UserContext(), c, h.logger, err)
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}
	ctx := c.UserContext()

	if err := h.validator.Registration(ctx, &req.Username, &req.Email, req.Password); err != nil {
		return h.fail(c, err)
	}

	s, err := h.svc.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(MsgUserCreated, s))
}

// Login accepts the identifier in either the username or the email field.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if err := h.validator.Login(identifier, req.Password); err != nil {
		return h.fail(c, err)
	}

	s, err := h.svc.Login(c.UserContext(), identifier, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(sessionResponse(MsgLoggedIn, s))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	already, err := h.svc.Logout(c.UserContext(), bearerToken(c))
	if err != nil {
		return h.fail(c, err)
	}
	if already {
		return message(c, fiber.StatusOK, MsgAlreadyRevoked)
	}
	return message(c, fiber.StatusOK, MsgLoggedOut)
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	return h.requestReset(c, h.svc.ForgotPassword)
}

func (h *AuthHandler) SendResetPasswordEmail(c *fiber.Ctx) error {
	return h.requestReset(c, h.svc.SendResetPasswordEmail)
}

func (h *AuthHandler) requestReset(c *fiber.Ctx, op func(context.Context, string) error) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}
	if err := h.validator.Email(&req.Email); err != nil {
		return h.fail(c, err)
	}
	if err := op(c.UserContext(), req.Email); err != nil {
		return h.fail(c, err)
	}
	return message(c, fiber.StatusOK, MsgResetLinkSent)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}
	if err := h.validator.ResetPassword(&req.Token, req.Password); err != nil {
		return h.fail(c, err)
	}
	if err := h.svc.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return h.fail(c, err)
	}
	return message(c, fiber.StatusOK, MsgPasswordReset)
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}
	if err := h.validator.Token(&req.Token); err != nil {
		return h.fail(c, err)
	}
	if err := h.svc.VerifyEmail(c.UserContext(), req.Token); err != nil {
		return h.fail(c, err)
	}
	return message(c, fiber.StatusOK, MsgEmailVerified)
}

func (h *AuthHandler) ResendVerificationEmail(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, MsgInvalidJSON)
	}
	ctx := c.UserContext()
	if err := h.validator.ResendVerification(ctx, &req.Email); err != nil {
		return h.fail(c, err)
	}
	if err := h.svc.ResendVerificationEmail(ctx, req.Email); err != nil {
		return h.fail(c, err)
	}
	return message(c, fiber.StatusOK, MsgVerificationSent)
}

// Me returns the identity behind the bearer token. It must be mounted
// behind RequireAuth.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	s, ok := c.Locals(localsSession).(*auth.Session)
	if !ok {
		return h.fail(c, common.ErrUnauthenticated.WithMessage(common.MsgNoToken))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id":    s.UserID,
		"expires_at": s.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func sessionResponse(msg string, s *services.Session) SessionResponse {
	return SessionResponse{
		Message:   msg,
		User:      userResponse(s.User),
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		UserName:      u.UserName,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
