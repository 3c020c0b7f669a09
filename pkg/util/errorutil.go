package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

type sentinelMapping struct {
	target  error
	code    string
	message string
	status  int
}

// Unknown accounts and wrong passwords share one message so responses do not
// reveal which one happened.
var sentinels = []sentinelMapping{
	{domain.ErrInvalidCredentials, "INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized},
	{domain.ErrTokenNotFound, "TOKEN_NOT_FOUND", "token is invalid or has already been used", http.StatusBadRequest},
	{domain.ErrTokenExpired, "TOKEN_EXPIRED", "token has expired, please request a new one", http.StatusBadRequest},
	{domain.ErrUnauthenticated, "UNAUTHENTICATED", "authentication required", http.StatusUnauthorized},
	{domain.ErrUnauthorized, "UNAUTHORIZED", "your role does not permit this operation", http.StatusForbidden},
	{domain.ErrForbidden, "FORBIDDEN", "this role assignment is not permitted for your role", http.StatusForbidden},
	{domain.ErrAlreadyVerified, "ALREADY_VERIFIED", "email is already verified", http.StatusConflict},
	{domain.ErrEmailNotVerified, "EMAIL_NOT_VERIFIED", "please verify your email before logging in", http.StatusForbidden},
	{domain.ErrAccountExists, "ACCOUNT_EXISTS", "username or email already exists", http.StatusConflict},
	{domain.ErrAccountNotFound, "NOT_FOUND", "account not found", http.StatusNotFound},
	{domain.ErrReasonRequired, "VALIDATION_FAILED", "a reason is required for role changes", http.StatusBadRequest},
	{domain.ErrInvalidRole, "VALIDATION_FAILED", "invalid role", http.StatusBadRequest},
	{domain.ErrRoleConflict, "CONFLICT", "role was changed concurrently, retry", http.StatusConflict},
	{domain.ErrTooManyRequests, "TOO_MANY_REQUESTS", "too many requests, try again later", http.StatusTooManyRequests},
	{domain.ErrPasswordTooLong, "VALIDATION_FAILED", "password must be no more than 72 bytes", http.StatusBadRequest},
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, s := range sentinels {
		if errors.Is(err, s.target) {
			return &DomainError{Code: s.code, Message: s.message, HTTPStatus: s.status, Err: err}
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestTimeout:
		return "TIMEOUT"
	default:
		if status >= 500 {
			return "INTERNAL_ERROR"
		}
		return "REQUEST_FAILED"
	}
}
