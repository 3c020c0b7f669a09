package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/blog-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventVerificationIssued   EventType = "verification_issued"
	EventPasswordResetIssued  EventType = "password_reset_issued"
	EventRoleChanged          EventType = "role_changed"
	EventEmailVerified        EventType = "email_verified"
	EventPasswordChanged      EventType = "password_changed"
	EventRoleUpgradeRequested EventType = "role_upgrade_requested"
)

// Event represents an account lifecycle event handed to the notification
// collaborator. Fields that do not apply to a type are left empty.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	OldRole   domain.Role `json:"old_role,omitempty"`
	NewRole   domain.Role `json:"new_role,omitempty"`
	Actor     string      `json:"actor,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func newEvent(eventType EventType, email, username string, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		Username:  username,
		Timestamp: at,
	}
}

// VerificationIssued is emitted when a verification token is (re)issued.
func VerificationIssued(email, username string, token domain.CredentialToken, at time.Time) Event {
	e := newEvent(EventVerificationIssued, email, username, at)
	e.Token = token.Value
	e.ExpiresAt = &token.ExpiresAt
	return e
}

// PasswordResetIssued is emitted when a reset token is issued.
func PasswordResetIssued(email, username string, token domain.CredentialToken, at time.Time) Event {
	e := newEvent(EventPasswordResetIssued, email, username, at)
	e.Token = token.Value
	e.ExpiresAt = &token.ExpiresAt
	return e
}

// RoleChanged is emitted after an administrative role transition.
func RoleChanged(change domain.RoleChange) Event {
	e := newEvent(EventRoleChanged, change.Email, change.Username, change.ChangedAt)
	e.OldRole = change.OldRole
	e.NewRole = change.NewRole
	e.Actor = change.Actor
	e.Reason = change.Reason
	return e
}

// EmailVerified is emitted once a verification token is redeemed.
func EmailVerified(email, username string, at time.Time) Event {
	return newEvent(EventEmailVerified, email, username, at)
}

// PasswordChanged is emitted after a reset or an authenticated password change.
func PasswordChanged(email, username string, at time.Time) Event {
	return newEvent(EventPasswordChanged, email, username, at)
}

// RoleUpgradeRequested is emitted when a user asks administrators for a higher role.
func RoleUpgradeRequested(email, username string, current, requested domain.Role, reason string, at time.Time) Event {
	e := newEvent(EventRoleUpgradeRequested, email, username, at)
	e.OldRole = current
	e.NewRole = requested
	e.Reason = reason
	return e
}
