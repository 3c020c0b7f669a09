package domain

import "errors"

// Lifecycle and access-control failures. They are translated to transport
// responses by pkg/util/errorutil.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrUnauthorized       = errors.New("insufficient role")
	ErrForbidden          = errors.New("role escalation not permitted")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAccountExists      = errors.New("username or email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrReasonRequired     = errors.New("a reason is required for role changes")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleConflict       = errors.New("role was changed concurrently")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
)
