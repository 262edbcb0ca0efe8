package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	"github.com/aussiebroadwan/orgauth/internal/auth/domain"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// ScopeService derives the set of organizations a user may act upon from
// their role and the organization tree. Scopes are cached per (user, role)
// and recomputed on miss.
type ScopeService struct {
	Store store.Store
	Cache *cache.SessionCache
}

func NewScopeService(st store.Store, c *cache.SessionCache) *ScopeService {
	return &ScopeService{Store: st, Cache: c}
}

// ResolveScope returns the user's organization scope, serving from cache
// when a current entry exists.
func (s *ScopeService) ResolveScope(ctx context.Context, userID string, role domain.Role) (domain.OrgScope, error) {
	if cached, err := s.Cache.GetScope(ctx, userID, role); err == nil && cached != nil {
		return *cached, nil
	}

	scope, err := s.CalculateScope(ctx, userID, role)
	if err != nil {
		return domain.OrgScope{}, err
	}

	if err := s.Cache.SetScope(ctx, userID, role, scope); err != nil {
		slogx.FromContext(ctx).Warn("failed to cache org scope",
			slog.String("user_id", userID), slog.Any("error", err))
	}
	return scope, nil
}

// CalculateScope computes the scope from the durable store, ignoring the
// cache. Role semantics:
//
//	system-admin         every active organization
//	org-admin            direct organizations plus all descendants
//	org-manager          direct organizations plus immediate children
//	anything else        direct organizations only
func (s *ScopeService) CalculateScope(ctx context.Context, userID string, role domain.Role) (domain.OrgScope, error) {
	orgs, err := s.Store.Organizations().ListActiveOrganizations(ctx)
	if err != nil {
		return domain.OrgScope{}, err
	}
	idx := newOrgIndex(orgs)

	if role == domain.RoleSystemAdmin {
		ids := make([]string, 0, len(orgs))
		for _, o := range orgs {
			ids = append(ids, o.ID)
		}
		sort.Strings(ids)
		return domain.OrgScope{CanAccessAll: true, OrganizationIDs: ids}, nil
	}

	direct, err := s.Store.Users().ListUserOrganizationIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OrgScope{}, ErrUserNotFound
		}
		return domain.OrgScope{}, err
	}

	set := make(map[string]struct{}, len(direct))
	for _, id := range direct {
		// Inactive organizations fall out of the index and out of scope.
		// The filter applies to every role so a narrower role never sees an
		// organization a wider one does not.
		if !idx.has(id) {
			continue
		}
		set[id] = struct{}{}
		switch role {
		case domain.RoleOrgAdmin:
			idx.collectDescendants(id, set)
		case domain.RoleOrgManager:
			for _, child := range idx.children[id] {
				set[child] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return domain.OrgScope{OrganizationIDs: ids}, nil
}

// CanAccess reports whether the user's scope covers the organization.
func (s *ScopeService) CanAccess(ctx context.Context, userID string, role domain.Role, orgID string) (bool, error) {
	scope, err := s.ResolveScope(ctx, userID, role)
	if err != nil {
		return false, err
	}
	return scope.Contains(orgID), nil
}

// InvalidateUserScope drops the cached scope for every role of one user.
// Call it when the user's direct organization assignments change.
func (s *ScopeService) InvalidateUserScope(ctx context.Context, userID string) error {
	return s.Cache.InvalidateScope(ctx, userID)
}

// InvalidateAllScopes drops every cached scope at once. Call it when the
// organization tree itself changes shape.
func (s *ScopeService) InvalidateAllScopes(ctx context.Context) error {
	return s.Cache.BumpScopeEpoch(ctx)
}

// orgIndex is an in-memory snapshot of the active organization tree,
// indexed for traversal.
type orgIndex struct {
	byID     map[string]domain.Organization
	children map[string][]string
}

func newOrgIndex(orgs []domain.Organization) *orgIndex {
	idx := &orgIndex{
		byID:     make(map[string]domain.Organization, len(orgs)),
		children: make(map[string][]string, len(orgs)),
	}
	for _, o := range orgs {
		idx.byID[o.ID] = o
	}
	for _, o := range orgs {
		if o.ParentID == nil {
			continue
		}
		// Edges into nodes missing from the snapshot (inactive parents) are
		// kept; the child is still reachable when walking from itself.
		idx.children[*o.ParentID] = append(idx.children[*o.ParentID], o.ID)
	}
	return idx
}

func (idx *orgIndex) has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// collectDescendants walks the subtree under rootID breadth-first, adding
// every node to set. The visited guard makes the walk terminate even if
// stored data has been corrupted into a cycle.
func (idx *orgIndex) collectDescendants(rootID string, set map[string]struct{}) {
	visited := map[string]struct{}{rootID: {}}
	queue := append([]string(nil), idx.children[rootID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		set[id] = struct{}{}
		queue = append(queue, idx.children[id]...)
	}
}
