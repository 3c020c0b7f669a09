package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/auth"
	"github.com/spec-kit/blog-service/internal/config"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/repository"
)

// RegisterInput carries a registration request. Role is optional and may
// only name a self-assignable role.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Session is an issued bearer token for an account.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// AuthService coordinates registration, login and the account lifecycle
// flows built on the credential lifecycle manager.
type AuthService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	lifecycle  *CredentialLifecycle
	policy     auth.Policy
	limiter    IssueLimiter
	publisher  events.Publisher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service. Nil
// optional fields get defaults built from config.
type AuthDependencies struct {
	Accounts  repository.AccountRepository
	Tokens    *auth.TokenManager
	Lifecycle *CredentialLifecycle
	Limiter   IssueLimiter
	Publisher events.Publisher
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		accounts:   deps.Accounts,
		tokenMgr:   deps.Tokens,
		lifecycle:  deps.Lifecycle,
		policy:     auth.DefaultPolicy(),
		limiter:    deps.Limiter,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tokenMgr == nil {
		s.tokenMgr = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL).WithClock(s.now)
	}
	if s.lifecycle == nil {
		s.lifecycle = NewCredentialLifecycle(s.accounts, cfg.Auth.VerificationTTL, cfg.Auth.PasswordResetTTL).WithClock(s.now)
	}
	if s.limiter == nil {
		s.limiter = NoopIssueLimiter{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Register creates a READER account with an unverified email and issues
// its first verification token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	if strings.TrimSpace(in.Role) != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		if !role.SelfAssignable() {
			return nil, domain.ErrForbidden
		}
	}
	if _, err := s.accounts.FindByUsername(ctx, in.Username); err == nil {
		return nil, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	if _, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.DefaultRole(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.lifecycle.IssueVerification(ctx, account)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.VerificationIssued(account.Email, account.Username, token, now))
	return account, nil
}

// Login checks email and password and issues a session token. Unknown
// emails and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_ = auth.ComparePassword(s.timingHash(), password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !account.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}

	token, exp, err := s.tokenMgr.Issue(account.Username, account.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Account: account}, nil
}

// Logout currently no-ops for stateless JWT approach.
func (s *AuthService) Logout(_ context.Context, _ domain.Identity) error {
	return nil
}

// VerifyEmail redeems a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.Account, error) {
	account, err := s.lifecycle.RedeemVerification(ctx, token)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.EmailVerified(account.Email, account.Username, s.now()))
	return account, nil
}

// ResendVerification issues a new verification token, invalidating the
// previous one. Unknown emails succeed without doing anything.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return domain.ErrAlreadyVerified
	}
	allowed, err := s.limiter.Allow(ctx, domain.TokenKindVerification, account.Email)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrTooManyRequests
	}

	token, err := s.lifecycle.IssueVerification(ctx, account)
	if err != nil {
		return err
	}
	s.emit(ctx, events.VerificationIssued(account.Email, account.Username, token, s.now()))
	return nil
}

// ForgotPassword issues a reset token when the email belongs to an account.
// The outcome is never reported to the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// Failures past this point are logged only. Returning them would tell the
	// caller the email is registered.
	allowed, err := s.limiter.Allow(ctx, domain.TokenKindReset, account.Email)
	if err != nil {
		s.logger.Warn("password reset limiter failed", zap.String("username", account.Username), zap.Error(err))
		return nil
	}
	if !allowed {
		s.logger.Info("password reset throttled", zap.String("username", account.Username))
		return nil
	}

	token, err := s.lifecycle.IssueReset(ctx, account)
	if err != nil {
		s.logger.Warn("password reset issue failed", zap.String("username", account.Username), zap.Error(err))
		return nil
	}
	s.emit(ctx, events.PasswordResetIssued(account.Email, account.Username, token, s.now()))
	return nil
}

// ResetPassword redeems a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrTokenNotFound
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	account, err := s.lifecycle.RedeemReset(ctx, token, hash)
	if err != nil {
		return err
	}
	s.emit(ctx, events.PasswordChanged(account.Email, account.Username, s.now()))
	return nil
}

// ChangePassword verifies current password before updating to new hash.
// A pending reset token is discarded.
func (s *AuthService) ChangePassword(ctx context.Context, identity domain.Identity, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, s.now()); err != nil {
		return err
	}
	s.emit(ctx, events.PasswordChanged(account.Email, account.Username, s.now()))
	return nil
}

// Profile returns the caller's stored account.
func (s *AuthService) Profile(ctx context.Context, identity domain.Identity) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, identity.AccountID)
}

// RequestRoleUpgrade asks administrators for a higher role. Only the
// contributor and author tiers can be requested.
func (s *AuthService) RequestRoleUpgrade(ctx context.Context, identity domain.Identity, requested domain.Role, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return domain.ErrReasonRequired
	}
	if requested != domain.RoleContributor && requested != domain.RoleAuthor {
		return domain.ErrInvalidRole
	}
	if identity.Role.AtLeast(requested) {
		return domain.ErrInvalidRole
	}
	s.emit(ctx, events.RoleUpgradeRequested(identity.Email, identity.Username, identity.Role, requested, reason, s.now()))
	return nil
}

// ChangeUserRole moves the named account to newRole on behalf of actor.
// The transition is recorded in the role change log.
func (s *AuthService) ChangeUserRole(ctx context.Context, actor domain.Identity, username string, newRole domain.Role, reason string) (*domain.Account, error) {
	target, err := s.accounts.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrAccountNotFound) && !s.policy.Authorize(actor.Role, s.policy.ManageThreshold) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	change := domain.RoleChange{
		ID:        uuid.NewString(),
		AccountID: target.ID,
		Username:  target.Username,
		Email:     target.Email,
		OldRole:   target.Role,
		NewRole:   newRole,
		Actor:     actor.Username,
		ActorRole: actor.Role,
		Reason:    strings.TrimSpace(reason),
		ChangedAt: s.now(),
	}
	if err := s.policy.AuthorizeRoleChange(change); err != nil {
		return nil, err
	}

	updated, err := s.accounts.ChangeRole(ctx, change)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed",
		zap.String("username", change.Username),
		zap.Stringer("old_role", change.OldRole),
		zap.Stringer("new_role", change.NewRole),
		zap.String("actor", change.Actor))
	s.emit(ctx, events.RoleChanged(change))
	return updated, nil
}

// ListAccounts returns accounts matching filter.
func (s *AuthService) ListAccounts(ctx context.Context, actor domain.Identity, filter repository.AccountFilter) ([]domain.Account, error) {
	if err := s.policy.Require(actor.Role, s.policy.ManageThreshold); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx, filter)
}

// DeleteAccount removes the named account. Accounts cannot delete
// themselves through this path.
func (s *AuthService) DeleteAccount(ctx context.Context, actor domain.Identity, username string) error {
	if err := s.policy.Require(actor.Role, s.policy.ManageThreshold); err != nil {
		return err
	}
	target, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if target.ID == actor.AccountID {
		return domain.ErrForbidden
	}
	if err := s.policy.CanManage(actor.Role, target.Role); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, target.ID); err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("username", target.Username), zap.String("actor", actor.Username))
	return nil
}

// RoleHistory lists the role changes of the named account, newest first.
func (s *AuthService) RoleHistory(ctx context.Context, actor domain.Identity, username string) ([]domain.RoleChange, error) {
	if err := s.policy.Require(actor.Role, s.policy.ManageThreshold); err != nil {
		return nil, err
	}
	target, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.accounts.ListRoleChanges(ctx, target.ID)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Policy exposes the authorization policy.
func (s *AuthService) Policy() auth.Policy {
	return s.policy
}

// emit hands the event to the publisher. Delivery failures never fail the
// lifecycle operation that produced the event.
func (s *AuthService) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// timingHash is compared against when no account matches so that unknown
// emails cost the same bcrypt work as wrong passwords.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
