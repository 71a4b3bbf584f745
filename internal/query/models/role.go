package models

import (
	"strings"

	hierarchy "parishnet/internal/hierarchy/models"
	dErrors "parishnet/pkg/domain-errors"
)

// Role is the caller's position in the hierarchy.
type Role string

const (
	RoleIndividual           Role = "individual"
	RoleCommunityCoordinator Role = "community_coordinator"
	RoleRegionalLeader       Role = "regional_leader"
	RoleGlobalCoordinator    Role = "global_coordinator"
)

// Roles lists every role, lowest scope first.
var Roles = []Role{RoleIndividual, RoleCommunityCoordinator, RoleRegionalLeader, RoleGlobalCoordinator}

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := r.ScopeKind(); !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown caller role")
	}
	return r, nil
}

// ScopeKind is the kind of entity a role's scope key names.
func (r Role) ScopeKind() (hierarchy.Kind, bool) {
	switch r {
	case RoleIndividual:
		return hierarchy.KindIndividual, true
	case RoleCommunityCoordinator:
		return hierarchy.KindCommunity, true
	case RoleRegionalLeader:
		return hierarchy.KindRegion, true
	case RoleGlobalCoordinator:
		return hierarchy.KindCampaign, true
	default:
		return "", false
	}
}

func (r Role) String() string {
	return string(r)
}

// Caller identifies who is asking. Identity is established upstream.
type Caller struct {
	Role     Role
	ScopeKey string
}
