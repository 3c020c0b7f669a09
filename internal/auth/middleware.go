package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/observability"
)

const (
	resultKey   = "auth_result"
	usernameKey = "auth_username"
)

// AccountFinder is the part of the credential store the authenticator needs.
type AccountFinder interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
}

type authResult struct {
	identity      domain.Identity
	authenticated bool
}

// Authenticator resolves the caller of each request from its bearer token.
// It never rejects a request: failures leave the request anonymous and the
// route guards decide.
type Authenticator struct {
	tokens   *TokenManager
	accounts AccountFinder
	public   []string
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewAuthenticator constructs the middleware. Paths starting with one of the
// public prefixes skip token processing.
func NewAuthenticator(tokens *TokenManager, accounts AccountFinder, logger *zap.Logger, metrics *observability.Metrics, publicPrefixes ...string) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		tokens:   tokens,
		accounts: accounts,
		public:   publicPrefixes,
		logger:   logger,
		metrics:  metrics,
	}
}

// Handle attaches the identity to the request, at most once per request.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	if _, done := c.Locals(resultKey).(*authResult); done {
		return c.Next()
	}

	result := &authResult{}
	c.Locals(resultKey, result)

	if a.isPublic(c.Path()) {
		a.metrics.RecordAuth(observability.AuthOutcomePublicRoute)
		return c.Next()
	}

	identity, outcome := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	a.metrics.RecordAuth(outcome)
	if outcome == observability.AuthOutcomeAuthenticated {
		result.identity = identity
		result.authenticated = true
		c.Locals(usernameKey, identity.Username)
		c.SetUserContext(WithIdentity(c.UserContext(), identity))
	}
	return c.Next()
}

// Authenticate verifies the Authorization header value and loads the current
// account. The stored role wins over the role embedded in the token.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (domain.Identity, observability.AuthOutcome) {
	token, ok := bearerToken(header)
	if !ok {
		return domain.Identity{}, observability.AuthOutcomeAnonymous
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, observability.AuthOutcomeInvalidToken
	}

	account, err := a.accounts.FindByUsername(ctx, claims.Username)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			a.logger.Warn("account lookup failed during authentication", zap.String("username", claims.Username), zap.Error(err))
		}
		return domain.Identity{}, observability.AuthOutcomeUnknownUser
	}
	return account.Identity(), observability.AuthOutcomeAuthenticated
}

// IdentityFromFiber returns the identity resolved for this request.
func IdentityFromFiber(c *fiber.Ctx) (domain.Identity, bool) {
	result, ok := c.Locals(resultKey).(*authResult)
	if !ok || !result.authenticated {
		return domain.Identity{}, false
	}
	return result.identity, true
}

func (a *Authenticator) isPublic(path string) bool {
	for _, prefix := range a.public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
