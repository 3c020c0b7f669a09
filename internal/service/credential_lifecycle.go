package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/repository"
)

// CredentialLifecycle issues and redeems the single-use verification and
// password reset tokens stored on accounts.
type CredentialLifecycle struct {
	accounts        repository.AccountRepository
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// NewCredentialLifecycle builds the manager. Non-positive TTLs fall back to
// 24h for verification and 1h for reset.
func NewCredentialLifecycle(accounts repository.AccountRepository, verificationTTL, resetTTL time.Duration) *CredentialLifecycle {
	if verificationTTL <= 0 {
		verificationTTL = 24 * time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &CredentialLifecycle{
		accounts:        accounts,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		now:             time.Now,
	}
}

// WithClock replaces the time source.
func (l *CredentialLifecycle) WithClock(now func() time.Time) *CredentialLifecycle {
	l.now = now
	return l
}

// IssueVerification stores a fresh verification token on the account,
// replacing any previous one.
func (l *CredentialLifecycle) IssueVerification(ctx context.Context, account *domain.Account) (domain.CredentialToken, error) {
	return l.issue(ctx, account, domain.TokenKindVerification, l.verificationTTL)
}

// IssueReset stores a fresh password reset token on the account, replacing
// any previous one.
func (l *CredentialLifecycle) IssueReset(ctx context.Context, account *domain.Account) (domain.CredentialToken, error) {
	return l.issue(ctx, account, domain.TokenKindReset, l.resetTTL)
}

func (l *CredentialLifecycle) issue(ctx context.Context, account *domain.Account, kind domain.TokenKind, ttl time.Duration) (domain.CredentialToken, error) {
	now := l.now()
	token := domain.CredentialToken{
		Value:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	if err := l.accounts.SetCredentialToken(ctx, account.ID, kind, token, now); err != nil {
		return domain.CredentialToken{}, fmt.Errorf("store %s token: %w", kind, err)
	}
	account.SetToken(kind, &token)
	account.UpdatedAt = now
	return token, nil
}

// RedeemVerification consumes a verification token and marks the owning
// account's email verified.
func (l *CredentialLifecycle) RedeemVerification(ctx context.Context, value string) (*domain.Account, error) {
	return l.redeem(ctx, domain.TokenKindVerification, value,
		l.accounts.FindByVerificationToken,
		func(now time.Time) (*domain.Account, error) {
			return l.accounts.ConsumeVerificationToken(ctx, value, now)
		})
}

// RedeemReset consumes a reset token and stores passwordHash on the owning
// account.
func (l *CredentialLifecycle) RedeemReset(ctx context.Context, value, passwordHash string) (*domain.Account, error) {
	return l.redeem(ctx, domain.TokenKindReset, value,
		l.accounts.FindByResetToken,
		func(now time.Time) (*domain.Account, error) {
			return l.accounts.ConsumeResetToken(ctx, value, passwordHash, now)
		})
}

// redeem distinguishes an unknown token from an expired one before the
// atomic consume. An expired token is left in place. A failed consume is
// classified again by lostRace.
func (l *CredentialLifecycle) redeem(
	ctx context.Context,
	kind domain.TokenKind,
	value string,
	find func(context.Context, string) (*domain.Account, error),
	consume func(time.Time) (*domain.Account, error),
) (*domain.Account, error) {
	if value == "" {
		return nil, domain.ErrTokenNotFound
	}
	holder, err := find(ctx, value)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	token := holder.Token(kind)
	if token == nil || token.Value != value {
		return nil, domain.ErrTokenNotFound
	}

	now := l.now()
	if token.Expired(now) {
		return nil, domain.ErrTokenExpired
	}
	account, err := consume(now)
	if errors.Is(err, domain.ErrTokenNotFound) {
		// The token may have expired between the lookup and the update.
		return nil, l.lostRace(ctx, kind, value, find)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// lostRace classifies a failed consume. A token that is still stored but now
// past its expiry reports ErrTokenExpired; anything else was redeemed or
// replaced concurrently.
func (l *CredentialLifecycle) lostRace(
	ctx context.Context,
	kind domain.TokenKind,
	value string,
	find func(context.Context, string) (*domain.Account, error),
) error {
	holder, err := find(ctx, value)
	if err != nil {
		return domain.ErrTokenNotFound
	}
	if token := holder.Token(kind); token != nil && token.Value == value && token.Expired(l.now()) {
		return domain.ErrTokenExpired
	}
	return domain.ErrTokenNotFound
}
