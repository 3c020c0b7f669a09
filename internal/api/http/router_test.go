package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/api/http/handlers"
	"github.com/spec-kit/blog-service/internal/auth"
	"github.com/spec-kit/blog-service/internal/config"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/observability"
	"github.com/spec-kit/blog-service/internal/persistence"
	"github.com/spec-kit/blog-service/internal/repository"
	"github.com/spec-kit/blog-service/internal/service"
)

type tokenSink struct {
	mu     sync.Mutex
	tokens map[events.EventType]string
}

func (s *tokenSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Token != "" {
		s.tokens[event.Type] = event.Token
	}
	return nil
}

func (s *tokenSink) get(eventType events.EventType) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[eventType]
}

type apiFixture struct {
	app  *fiber.App
	repo repository.AccountRepository
	sink *tokenSink
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	var cfg config.Config
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4

	repo := repository.NewMemoryAccountRepository()
	sink := &tokenSink{tokens: map[events.EventType]string{}}
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		Accounts:  repo,
		Publisher: sink,
		Logger:    logger,
	})
	authenticator := auth.NewAuthenticator(authService.TokenManager(), repo, logger, metrics, PublicPrefixes...)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0, authenticator)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("blog-service", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Auth:   handlers.NewAuthHandler(authService),
		Admin:  handlers.NewAdminHandler(authService),
	})
	return &apiFixture{app: app, repo: repo, sink: sink}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// signup registers, verifies and logs in, returning the session token.
func (f *apiFixture) signup(t *testing.T, username string) string {
	t.Helper()
	status, _ := f.do(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "password-" + username,
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = f.do(t, fiber.MethodGet, "/api/v1/auth/verify-email?token="+f.sink.get(events.EventVerificationIssued), "", nil)
	require.Equal(t, fiber.StatusOK, status)

	status, out := f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": username + "@example.com", "password": "password-" + username,
	})
	require.Equal(t, fiber.StatusOK, status)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func (f *apiFixture) setRole(t *testing.T, username string, role domain.Role) {
	t.Helper()
	ctx := context.Background()
	account, err := f.repo.FindByUsername(ctx, username)
	require.NoError(t, err)
	account.Role = role
	require.NoError(t, f.repo.Save(ctx, account))
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signup(t, "alice")

	status, out := f.do(t, fiber.MethodGet, "/api/v1/auth/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var profile struct {
		Username      string `json:"username"`
		Role          string `json:"role"`
		EmailVerified bool   `json:"email_verified"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "READER", profile.Role)
	assert.True(t, profile.EmailVerified)

	// Replaying the verification token fails.
	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/verify-email?token="+f.sink.get(events.EventVerificationIssued), "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "TOKEN_NOT_FOUND", out.Error.Code)

	status, _ = f.do(t, fiber.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, fiber.StatusOK, status)
	status, _ = f.do(t, fiber.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{
		"token": f.sink.get(events.EventPasswordResetIssued), "new_password": "fresh-password", "confirm_password": "fresh-password",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, out = f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password-alice"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", out.Error.Code)
}

func TestUniformErrors(t *testing.T) {
	f := newAPIFixture(t)

	status, out := f.do(t, fiber.MethodGet, "/api/v1/auth/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", out.Error.Code)

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/profile", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", out.Error.Code)

	status, out = f.do(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x", "email": "nope", "password": "1"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", out.Error.Code)
	assert.Contains(t, out.Error.Details, "email")

	status, _ = f.do(t, fiber.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, fiber.StatusOK, status)

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", out.Error.Code)
}

func TestAdminRoleChangeOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	editor := f.signup(t, "ed")
	root := f.signup(t, "root")
	f.signup(t, "bob")
	f.setRole(t, "ed", domain.RoleEditor)
	f.setRole(t, "root", domain.RoleSuperAdmin)

	req := map[string]string{"username": "bob", "new_role": "ADMIN", "reason": "runs the site"}
	status, out := f.do(t, fiber.MethodPost, "/api/v1/auth/admin/change-user-role", editor, req)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", out.Error.Code)

	status, out = f.do(t, fiber.MethodPost, "/api/v1/auth/admin/change-user-role", root, map[string]string{"username": "bob", "new_role": "ADMIN"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", out.Error.Code)

	status, _ = f.do(t, fiber.MethodPost, "/api/v1/auth/admin/change-user-role", root, req)
	require.Equal(t, fiber.StatusOK, status)

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/admin/users/bob/role-changes", root, nil)
	require.Equal(t, fiber.StatusOK, status)
	var history []struct {
		OldRole string `json:"old_role"`
		NewRole string `json:"new_role"`
		Actor   string `json:"actor"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "READER", history[0].OldRole)
	assert.Equal(t, "ADMIN", history[0].NewRole)
	assert.Equal(t, "root", history[0].Actor)

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/admin/users", editor, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", out.Error.Code)

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/admin/users?role=admin", root, nil)
	require.Equal(t, fiber.StatusOK, status)
	var users []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestAdminMissingTargetNamesAccount(t *testing.T) {
	f := newAPIFixture(t)
	root := f.signup(t, "root")
	reader := f.signup(t, "rita")
	f.setRole(t, "root", domain.RoleSuperAdmin)

	status, out := f.do(t, fiber.MethodPost, "/api/v1/auth/admin/change-user-role", root,
		map[string]string{"username": "ghost", "new_role": "AUTHOR", "reason": "promote"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", out.Error.Code)
	assert.Equal(t, "account not found", out.Error.Message)
	assert.Equal(t, "ghost", out.Error.Details["username"])

	status, out = f.do(t, fiber.MethodDelete, "/api/v1/auth/admin/users/ghost", root, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ghost", out.Error.Details["username"])

	status, out = f.do(t, fiber.MethodGet, "/api/v1/auth/admin/users/ghost/role-changes", root, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ghost", out.Error.Details["username"])

	// Callers below ADMIN learn nothing about which accounts exist.
	status, out = f.do(t, fiber.MethodPost, "/api/v1/auth/admin/change-user-role", reader,
		map[string]string{"username": "ghost", "new_role": "AUTHOR", "reason": "promote"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", out.Error.Code)
}

func TestPublicRoutesIgnoreBearerTokens(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, fiber.MethodPost, "/api/v1/auth/forgot-password", "not-a-token", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, fiber.StatusOK, status)
	status, out := f.do(t, fiber.MethodPost, "/api/v1/auth/login", "not-a-token", map[string]string{"email": "ghost@example.com", "password": "whatever1"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", out.Error.Code)
	status, _ = f.do(t, fiber.MethodGet, "/api/v1/auth/roles", "not-a-token", nil)
	assert.Equal(t, fiber.StatusOK, status)

	// A protected route still processes the token.
	status, _ = f.do(t, fiber.MethodGet, "/api/v1/auth/profile", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out = f.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(out.Data, &snap))
	assert.Equal(t, int64(4), snap.Auth[observability.AuthOutcomePublicRoute])
	assert.Equal(t, int64(1), snap.Auth[observability.AuthOutcomeInvalidToken])
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = f.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, out := f.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(out.Data, &snap))
	assert.Equal(t, int64(3), snap.Auth[observability.AuthOutcomePublicRoute])
}
