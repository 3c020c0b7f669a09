package domain

import "time"

// TokenKind distinguishes the two credential token slots of an account.
type TokenKind string

const (
	TokenKindVerification TokenKind = "verification"
	TokenKindReset        TokenKind = "reset"
)

// CredentialToken is a single-use, expiring token stored on an account.
type CredentialToken struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t CredentialToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Account is the credential record of a registered user.
type Account struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	Verification  *CredentialToken
	Reset         *CredentialToken
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Token returns the token slot for the given kind, or nil when it is empty.
func (a *Account) Token(kind TokenKind) *CredentialToken {
	switch kind {
	case TokenKindVerification:
		return a.Verification
	case TokenKindReset:
		return a.Reset
	default:
		return nil
	}
}

// SetToken overwrites the token slot for kind. A nil token clears it.
func (a *Account) SetToken(kind TokenKind, token *CredentialToken) {
	switch kind {
	case TokenKindVerification:
		a.Verification = token
	case TokenKindReset:
		a.Reset = token
	}
}

// Identity returns the authenticated view of the account.
func (a *Account) Identity() Identity {
	return Identity{
		AccountID:     a.ID,
		Username:      a.Username,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
	}
}

// Identity is the caller attached to a request once authenticated.
type Identity struct {
	AccountID     string
	Username      string
	Email         string
	Role          Role
	EmailVerified bool
}

// RoleChange is an administrative transition of an account's role.
type RoleChange struct {
	ID        string
	AccountID string
	Username  string
	Email     string
	OldRole   Role
	NewRole   Role
	Actor     string
	ActorRole Role
	Reason    string
	ChangedAt time.Time
}
