package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/observability"
	"github.com/spec-kit/blog-service/internal/repository"
)

type whoami struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	FromContext   bool   `json:"from_context"`
}

type authFixture struct {
	app     *fiber.App
	tokens  *TokenManager
	repo    repository.AccountRepository
	clock   *fakeClock
	metrics *observability.Metrics
}

func newAuthFixture(t *testing.T, chain ...fiber.Handler) *authFixture {
	t.Helper()
	clock := newClock()
	tokens := NewTokenManager("secret", 2*time.Hour).WithClock(clock.Now)
	repo := repository.NewMemoryAccountRepository()
	metrics := observability.NewMetrics()
	authenticator := NewAuthenticator(tokens, repo, nil, metrics, "/public")

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			switch err {
			case domain.ErrUnauthenticated:
				return c.SendStatus(http.StatusUnauthorized)
			case domain.ErrUnauthorized:
				return c.SendStatus(http.StatusForbidden)
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
	app.Use(authenticator.Handle)
	handler := func(c *fiber.Ctx) error {
		identity, ok := IdentityFromFiber(c)
		_, inCtx := IdentityFromContext(c.UserContext())
		return c.JSON(whoami{
			Authenticated: ok,
			Username:      identity.Username,
			Role:          roleName(identity.Role),
			FromContext:   inCtx,
		})
	}
	handlers := append([]fiber.Handler{authenticator.Handle}, chain...)
	handlers = append(handlers, handler)
	app.Get("/me", handlers...)
	app.Get("/public/me", handler)

	require.NoError(t, repo.Create(context.Background(), &domain.Account{
		ID:            "1",
		Username:      "alice",
		Email:         "a@x.com",
		PasswordHash:  "hash",
		Role:          domain.RoleAuthor,
		EmailVerified: true,
	}))
	return &authFixture{app: app, tokens: tokens, repo: repo, clock: clock, metrics: metrics}
}

func roleName(r domain.Role) string {
	if !r.Valid() {
		return ""
	}
	return r.String()
}

func (f *authFixture) get(t *testing.T, path, header string) (int, whoami) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out whoami
	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func (f *authFixture) issue(t *testing.T, username string, role domain.Role) string {
	t.Helper()
	token, _, err := f.tokens.Issue(username, role)
	require.NoError(t, err)
	return token
}

func TestAuthenticatorAttachesIdentity(t *testing.T) {
	f := newAuthFixture(t)
	token := f.issue(t, "alice", domain.RoleAuthor)

	status, out := f.get(t, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, out.Authenticated)
	assert.True(t, out.FromContext)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, "AUTHOR", out.Role)
}

func TestAuthenticatorAnonymousCases(t *testing.T) {
	f := newAuthFixture(t)
	valid := f.issue(t, "alice", domain.RoleAuthor)
	ghost := f.issue(t, "ghost", domain.RoleAdmin)

	for name, header := range map[string]string{
		"no header":      "",
		"wrong scheme":   "Basic " + valid,
		"bearer only":    "Bearer ",
		"garbage token":  "Bearer abc.def.ghi",
		"deleted user":   "Bearer " + ghost,
		"missing prefix": valid,
	} {
		status, out := f.get(t, "/me", header)
		require.Equal(t, http.StatusOK, status, name)
		assert.False(t, out.Authenticated, name)
		assert.False(t, out.FromContext, name)
	}
}

func TestAuthenticatorExpiredTokenIsAnonymous(t *testing.T) {
	f := newAuthFixture(t)
	token := f.issue(t, "alice", domain.RoleAuthor)

	f.clock.Advance(time.Hour)
	_, out := f.get(t, "/me", "Bearer "+token)
	assert.True(t, out.Authenticated)

	f.clock.Advance(2 * time.Hour)
	_, out = f.get(t, "/me", "Bearer "+token)
	assert.False(t, out.Authenticated)
}

func TestAuthenticatorUsesStoredRole(t *testing.T) {
	f := newAuthFixture(t)
	token := f.issue(t, "alice", domain.RoleSuperAdmin)

	_, out := f.get(t, "/me", "Bearer "+token)
	assert.Equal(t, "AUTHOR", out.Role)
}

func TestAuthenticatorSkipsPublicRoutes(t *testing.T) {
	f := newAuthFixture(t)
	token := f.issue(t, "alice", domain.RoleAuthor)

	_, out := f.get(t, "/public/me", "Bearer "+token)
	assert.False(t, out.Authenticated)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Auth[observability.AuthOutcomePublicRoute])
}

func TestAuthenticatorRunsOncePerRequest(t *testing.T) {
	f := newAuthFixture(t)
	token := f.issue(t, "alice", domain.RoleAuthor)

	// /me installs the middleware twice: globally and on the route.
	_, out := f.get(t, "/me", "Bearer "+token)
	assert.True(t, out.Authenticated)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Auth[observability.AuthOutcomeAuthenticated])
}

func TestRequireGuards(t *testing.T) {
	f := newAuthFixture(t, RequireAuthenticated(), RequireRole(DefaultPolicy(), domain.RoleEditor))
	author := f.issue(t, "alice", domain.RoleAuthor)

	status, _ := f.get(t, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.get(t, "/me", "Bearer "+author)
	assert.Equal(t, http.StatusForbidden, status)

	acc, err := f.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	acc.Role = domain.RoleEditor
	require.NoError(t, f.repo.Save(context.Background(), acc))

	status, out := f.get(t, "/me", "Bearer "+author)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "EDITOR", out.Role)
}
