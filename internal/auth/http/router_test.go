package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/orgauth/pkg/jwtx"
)

type testEnv struct {
	router *Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec(
		[]byte("router-test-access-secret-0123456"),
		[]byte("router-test-refresh-secret-01234"),
		"orgauth-test",
		[]string{"orgauth"},
	)
	require.NoError(t, err)

	kv := cache.NewFallback(cache.NewMemory(), slog.Default())
	sessionCache := cache.NewSessionCache(kv)

	r := NewRouter("test", st, kv, slog.Default())
	r.AuthService = service.NewAuthService(st, sessionCache, codec, []string{"orgauth"})
	r.ScopeService = service.NewScopeService(st, sessionCache)
	r.HierarchyService = service.NewHierarchyService(st, sessionCache)
	r.ApplyRoutes()

	return &testEnv{router: r}
}

// do sends a JSON request through the router. A unique forwarded IP per
// call keeps the per-IP rate limiter out of the way.
var reqCounter int

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	reqCounter++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", reqCounter%250+1))

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (e *testEnv) register(t *testing.T, email string) authResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Email: email, Password: "s3cret-pass", Name: "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[authResponse](t, rec)
}

func TestRegisterLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	reg := e.register(t, "alice@example.com")
	require.NotEmpty(t, reg.Token.AccessToken)
	require.Equal(t, "user", reg.User.Role)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/register", "", registerRequest{
			Email: "alice@example.com", Password: "other", Name: "Dup",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("login and whoami", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
			Email: "alice@example.com", Password: "s3cret-pass",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		login := decodeBody[authResponse](t, rec)

		rec = e.do(t, http.MethodGet, "/v1/auth/me", login.Token.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decodeBody[userResponse](t, rec)
		require.Equal(t, "alice@example.com", me.Email)
	})

	t.Run("bad password is unauthorized", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
			Email: "alice@example.com", Password: "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[map[string]string](t, rec)
		require.Equal(t, "invalid_credentials", body["error"])
	})
}

func TestRefreshEndpoint(t *testing.T) {
	e := newTestEnv(t)
	reg := e.register(t, "bob@example.com")

	rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: reg.Token.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeBody[tokenResponse](t, rec)
	require.NotEqual(t, reg.Token.RefreshToken, rotated.RefreshToken)

	t.Run("replaying the old token is rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: reg.Token.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[map[string]string](t, rec)
		require.Equal(t, "token_reuse_detected", body["error"])
	})
}

func TestSessionsEndpoints(t *testing.T) {
	e := newTestEnv(t)
	reg := e.register(t, "carol@example.com")

	rec := e.do(t, http.MethodGet, "/v1/sessions", reg.Token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string][]sessionResponse](t, rec)
	require.Len(t, body["sessions"], 1)

	sessionID := body["sessions"][0].ID
	rec = e.do(t, http.MethodDelete, "/v1/sessions/"+sessionID, reg.Token.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodDelete, "/v1/sessions/"+sessionID, reg.Token.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrgEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	root, err := e.router.HierarchyService.CreateOrganization(ctx, "root", nil)
	require.NoError(t, err)
	child, err := e.router.HierarchyService.CreateOrganization(ctx, "child", &root.ID)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Email: "member@example.com", Password: "s3cret-pass", Name: "Member",
		OrganizationID: &child.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeBody[authResponse](t, rec)

	t.Run("list is scope filtered", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/orgs", reg.Token.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string][]orgResponse](t, rec)
		require.Len(t, body["organizations"], 1)
		require.Equal(t, child.ID, body["organizations"][0].ID)
	})

	t.Run("in-scope org is readable", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/orgs/"+child.ID, reg.Token.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("out-of-scope org reads as not found", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/orgs/"+root.ID, reg.Token.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("own scope endpoint", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/orgs/scope", reg.Token.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		scope := decodeBody[scopeResponse](t, rec)
		require.False(t, scope.CanAccessAll)
		require.Equal(t, []string{child.ID}, scope.OrganizationIDs)
	})

	t.Run("plain users must not mutate the tree", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/orgs", reg.Token.AccessToken, createOrgRequest{Name: "acme"})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = e.do(t, http.MethodPatch, "/v1/orgs/"+child.ID+"/parent", reg.Token.AccessToken, reparentRequest{ParentID: nil})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live := decodeBody[healthResponse](t, rec)
	require.Equal(t, "ok", live.Status)

	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[healthResponse](t, rec)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks["database"])
}
