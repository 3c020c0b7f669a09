package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/blog-service/internal/domain"
	apperrors "github.com/spec-kit/blog-service/pkg/util"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
	// bcrypt rejects longer input. Length counts runes, so bytes are checked too.
	maxPasswordBytes = 72
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Validate checks the registration payload.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength), validation.By(passwordBytes)),
		validation.Field(&r.Role, validation.By(validRole)),
	)
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login payload.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// EmailRequest carries a single email, used by resend-verification and
// forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

// Validate checks the email payload.
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest payload for redeeming a reset token.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks the reset payload.
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(minPasswordLength, maxPasswordLength), validation.By(passwordBytes)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(equals(r.NewPassword))),
	)
}

// ChangePasswordRequest payload for an authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks the change payload.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(minPasswordLength, maxPasswordLength), validation.By(passwordBytes)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(equals(r.NewPassword))),
	)
}

// RoleUpgradeRequest asks administrators for a higher role.
type RoleUpgradeRequest struct {
	RequestedRole string `json:"requested_role"`
	Reason        string `json:"reason"`
}

// Validate checks the upgrade payload.
func (r RoleUpgradeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestedRole, validation.Required, validation.By(validRole)),
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

// ChangeRoleRequest is an administrative role transition.
type ChangeRoleRequest struct {
	Username string `json:"username"`
	NewRole  string `json:"new_role"`
	Reason   string `json:"reason"`
}

// Validate checks the role change payload.
func (r ChangeRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.NewRole, validation.Required, validation.By(validRole)),
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	RoleDescription string      `json:"role_description"`
	EmailVerified   bool        `json:"email_verified"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewAccountResponse maps an account, omitting credentials.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		Username:        a.Username,
		Email:           a.Email,
		Role:            a.Role,
		RoleDescription: a.Role.Description(),
		EmailVerified:   a.EmailVerified,
		CreatedAt:       a.CreatedAt,
	}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      AccountResponse `json:"user"`
}

// RoleChangeResponse is an entry of the role change log.
type RoleChangeResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	OldRole   domain.Role `json:"old_role"`
	NewRole   domain.Role `json:"new_role"`
	Actor     string      `json:"actor"`
	Reason    string      `json:"reason"`
	ChangedAt time.Time   `json:"changed_at"`
}

// NewRoleChangeResponse maps a role change.
func NewRoleChangeResponse(c domain.RoleChange) RoleChangeResponse {
	return RoleChangeResponse{
		ID:        c.ID,
		Username:  c.Username,
		OldRole:   c.OldRole,
		NewRole:   c.NewRole,
		Actor:     c.Actor,
		Reason:    c.Reason,
		ChangedAt: c.ChangedAt,
	}
}

// ValidationError converts ozzo validation output into the uniform
// validation error with per-field details.
func ValidationError(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		details[field] = fieldErr.Error()
	}
	return apperrors.NewValidationError("invalid payload", details)
}

func validRole(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := domain.ParseRole(s); err != nil {
		return errors.New("must be one of READER, CONTRIBUTOR, AUTHOR, EDITOR, ADMIN, SUPER_ADMIN")
	}
	return nil
}

func equals(expected string) validation.RuleFunc {
	return func(value any) error {
		if s, _ := value.(string); s != expected {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

func passwordBytes(value any) error {
	s, _ := value.(string)
	if len(s) > maxPasswordBytes {
		return errors.New("must be no more than 72 bytes")
	}
	return nil
}
