package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/api/dto"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/repository"
	"github.com/spec-kit/blog-service/internal/service"
	apperrors "github.com/spec-kit/blog-service/pkg/util"
)

const maxPageSize = 100

// AdminHandler exposes account administration endpoints.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// ChangeUserRole handles POST /api/v1/auth/admin/change-user-role.
func (h *AdminHandler) ChangeUserRole(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	newRole, err := domain.ParseRole(req.NewRole)
	if err != nil {
		return err
	}

	account, err := h.auth.ChangeUserRole(c.UserContext(), identity, req.Username, newRole, req.Reason)
	if err != nil {
		return targetError(err, req.Username)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}

// ListUsers handles GET /api/v1/auth/admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	filter, err := parseAccountFilter(c)
	if err != nil {
		return err
	}

	accounts, err := h.auth.ListAccounts(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, dto.NewAccountResponse(&accounts[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"limit": filter.Limit, "offset": filter.Offset},
	})
}

// DeleteUser handles DELETE /api/v1/auth/admin/users/:username.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.auth.DeleteAccount(c.UserContext(), identity, c.Params("username")); err != nil {
		return targetError(err, c.Params("username"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RoleHistory handles GET /api/v1/auth/admin/users/:username/role-changes.
func (h *AdminHandler) RoleHistory(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	changes, err := h.auth.RoleHistory(c.UserContext(), identity, c.Params("username"))
	if err != nil {
		return targetError(err, c.Params("username"))
	}
	items := make([]dto.RoleChangeResponse, 0, len(changes))
	for _, change := range changes {
		items = append(items, dto.NewRoleChangeResponse(change))
	}
	return c.JSON(fiber.Map{"data": items})
}

// targetError names the target account in lookup and concurrent-change failures.
func targetError(err error, username string) error {
	details := map[string]any{"username": username}
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperrors.NewNotFound("account", details)
	case errors.Is(err, domain.ErrRoleConflict):
		return apperrors.NewConflict("role was changed concurrently, retry", details)
	}
	return err
}

func parseAccountFilter(c *fiber.Ctx) (repository.AccountFilter, error) {
	filter := repository.AccountFilter{Limit: 50}
	if raw := c.Query("role"); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return filter, err
		}
		filter.Role = &role
	}
	if raw := c.Query("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("verified must be a boolean", nil)
		}
		filter.Verified = &verified
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, apperrors.NewValidationError("limit must be a positive integer", nil)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, apperrors.NewValidationError("offset must be a non-negative integer", nil)
		}
		filter.Offset = offset
	}
	return filter, nil
}
