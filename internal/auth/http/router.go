package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	kv    *cache.Fallback

	AuthService      *service.AuthService
	ScopeService     *service.ScopeService
	HierarchyService *service.HierarchyService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	kv *cache.Fallback,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		kv:           kv,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerOrgs()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// verifier adapts the auth service to the middleware's token check.
func (r *Router) verifier() httpx.TokenVerifier {
	return func(ctx context.Context, token string) (httpx.Identity, error) {
		info, err := r.AuthService.VerifyToken(ctx, token)
		if err != nil {
			return httpx.Identity{}, err
		}
		id := httpx.Identity{
			UserID: info.UserID,
			Email:  info.Email,
			Role:   info.Role.String(),
		}
		if info.OrganizationID != nil {
			id.OrganizationID = *info.OrganizationID
		}
		return id, nil
	}
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}
	verify := r.verifier()

	// Credential endpoints carry the strict limit to blunt brute force.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	// Refresh and logout authenticate via the refresh token in the body.
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.StrictLimit),
		))
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{AuthService: r.AuthService}
	verify := r.verifier()

	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))
	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
}

func (r *Router) registerOrgs() {
	h := &OrgsHandler{
		HierarchyService: r.HierarchyService,
		ScopeService:     r.ScopeService,
	}
	verify := r.verifier()

	adminRoles := []string{
		domain.RoleSystemAdmin.String(),
		domain.RoleOrgAdmin.String(),
	}

	r.Mux.Handle("GET /v1/orgs",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /v1/orgs/scope",
		httpx.Chain(http.HandlerFunc(h.HandleScope),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /v1/orgs/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(verify),
			httpx.RateLimitByUser(httpx.LenientLimit),
		))

	// Tree mutations are admin-only.
	r.Mux.Handle("POST /v1/orgs",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.AuthnMiddleware(verify),
			httpx.RequireAnyRole(adminRoles...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
	r.Mux.Handle("PATCH /v1/orgs/{id}/parent",
		httpx.Chain(http.HandlerFunc(h.HandleReparent),
			httpx.AuthnMiddleware(verify),
			httpx.RequireAnyRole(adminRoles...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.kv),
			httpx.RateLimitByIP(httpx.PublicLimit),
		))
}
