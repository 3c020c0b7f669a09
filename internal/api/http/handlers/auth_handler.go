package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/api/dto"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/service"
)

// AuthHandler exposes the account lifecycle endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	account, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user":    dto.NewAccountResponse(account),
			"message": "registration successful, check your email to verify your account",
		},
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.UserContext(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     session.Token,
			TokenType: "Bearer",
			ExpiresAt: session.ExpiresAt,
			User:      dto.NewAccountResponse(session.Account),
		},
	})
}

// VerifyEmail handles GET /api/v1/auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	account, err := h.auth.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":    dto.NewAccountResponse(account),
			"message": "email verified",
		},
	})
}

// ResendVerification handles POST /api/v1/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResendVerification(c.UserContext(), strings.TrimSpace(req.Email)); err != nil {
		return err
	}
	return message(c, http.StatusOK, "if the account exists, a verification email has been sent")
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.UserContext(), strings.TrimSpace(req.Email)); err != nil {
		return err
	}
	return message(c, http.StatusOK, "if the account exists, a password reset email has been sent")
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return message(c, http.StatusOK, "password has been reset")
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return message(c, http.StatusOK, "password changed")
}

// Profile handles GET /api/v1/auth/profile.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	account, err := h.auth.Profile(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}

// Logout handles POST /api/v1/auth/logout. Sessions are stateless, so the
// client simply discards its token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), identity); err != nil {
		return err
	}
	return message(c, http.StatusOK, "logged out")
}

// RequestRoleUpgrade handles POST /api/v1/auth/request-role-upgrade.
func (h *AuthHandler) RequestRoleUpgrade(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.RoleUpgradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	requested, err := domain.ParseRole(req.RequestedRole)
	if err != nil {
		return err
	}
	if err := h.auth.RequestRoleUpgrade(c.UserContext(), identity, requested, req.Reason); err != nil {
		return err
	}
	return message(c, http.StatusAccepted, "role upgrade request submitted")
}

// Roles handles GET /api/v1/auth/roles.
func (h *AuthHandler) Roles(c *fiber.Ctx) error {
	roles := make([]fiber.Map, 0, len(domain.Roles()))
	for _, role := range domain.Roles() {
		roles = append(roles, fiber.Map{
			"name":        role,
			"level":       role.Level(),
			"description": role.Description(),
		})
	}
	return c.JSON(fiber.Map{"data": roles})
}
