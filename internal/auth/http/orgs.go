package http

import (
	"net/http"

	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// OrgsHandler serves the organization tree endpoints. Reads are gated by
// the caller's resolved scope; mutations require an admin role and go
// through the hierarchy guards.
type OrgsHandler struct {
	HierarchyService *service.HierarchyService
	ScopeService     *service.ScopeService
}

// HandleGet serves GET /v1/orgs/{id}.
func (h *OrgsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	orgID := r.PathValue("id")
	allowed, err := h.ScopeService.CanAccess(ctx, id.UserID, domain.Role(id.Role), orgID)
	if err != nil {
		slogx.FromContext(ctx).Error("scope check failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}
	if !allowed {
		// Out-of-scope and nonexistent organizations are indistinguishable.
		ErrNotFound.WriteError(w)
		return
	}

	org, err := h.HierarchyService.GetOrganization(ctx, orgID)
	if err != nil {
		mapServiceError(err).WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrgResponse(org))
}

// HandleList serves GET /v1/orgs, filtered to the caller's scope.
func (h *OrgsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	scope, err := h.ScopeService.ResolveScope(ctx, id.UserID, domain.Role(id.Role))
	if err != nil {
		slogx.FromContext(ctx).Error("scope resolve failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	orgs, err := h.HierarchyService.ListOrganizations(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("list organizations failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	out := make([]orgResponse, 0, len(orgs))
	for _, o := range orgs {
		if scope.Contains(o.ID) {
			out = append(out, toOrgResponse(o))
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"organizations": out})
}

// HandleScope serves GET /v1/orgs/scope, the caller's own resolved scope.
func (h *OrgsHandler) HandleScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	scope, err := h.ScopeService.ResolveScope(ctx, id.UserID, domain.Role(id.Role))
	if err != nil {
		slogx.FromContext(ctx).Error("scope resolve failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	ids := scope.OrganizationIDs
	if ids == nil {
		ids = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, scopeResponse{
		CanAccessAll:    scope.CanAccessAll,
		OrganizationIDs: ids,
	})
}

// HandleCreate serves POST /v1/orgs.
func (h *OrgsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req createOrgRequest
	if !decodeJSON(r, &req) || req.Name == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	org, err := h.HierarchyService.CreateOrganization(ctx, req.Name, req.ParentID)
	if err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("create organization failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toOrgResponse(org))
}

// HandleReparent serves PATCH /v1/orgs/{id}/parent.
func (h *OrgsHandler) HandleReparent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	orgID := r.PathValue("id")
	var req reparentRequest
	if orgID == "" || !decodeJSON(r, &req) {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.HierarchyService.Reparent(ctx, orgID, req.ParentID); err != nil {
		apiErr := mapServiceError(err)
		if apiErr == ErrServerError {
			log.Error("reparent organization failed", "err", err)
		}
		apiErr.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
