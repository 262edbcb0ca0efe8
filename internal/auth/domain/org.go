package domain

import "time"

// MaxOrgDepth bounds the organization tree, root included. A new child may
// only be attached when depth(parent)+1 <= MaxOrgDepth.
const MaxOrgDepth = 5

// Organization is a node in a strict tree. ParentID nil means root.
type Organization struct {
	ID        string
	Name      string
	ParentID  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrgScope is the derived set of organizations a (user, role) pair may act
// upon. It is cached, never persisted; recomputed on miss or invalidation.
type OrgScope struct {
	CanAccessAll    bool     `json:"can_access_all"`
	OrganizationIDs []string `json:"organization_ids"`
}

// Contains reports whether orgID is inside the scope.
func (s OrgScope) Contains(orgID string) bool {
	if s.CanAccessAll {
		return true
	}
	for _, id := range s.OrganizationIDs {
		if id == orgID {
			return true
		}
	}
	return false
}
