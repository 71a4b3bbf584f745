package service

import (
	hierarchy "parishnet/internal/hierarchy/models"
	"parishnet/internal/query/models"
)

// Relationship is the position of a target relative to the caller's scope.
type Relationship int

const (
	RelUnrelated Relationship = iota
	RelSelf
	RelParent
	RelChild
)

func (r Relationship) String() string {
	switch r {
	case RelSelf:
		return "self"
	case RelParent:
		return "parent"
	case RelChild:
		return "child"
	default:
		return "unrelated"
	}
}

// Access is what a caller may see of a target.
type Access int

const (
	AccessDenied Access = iota
	AccessDetail
	AccessAggregate
	AccessAggregateWithChildren
)

func (a Access) String() string {
	switch a {
	case AccessDetail:
		return "detail"
	case AccessAggregate:
		return "aggregate"
	case AccessAggregateWithChildren:
		return "aggregate_with_children"
	default:
		return "denied"
	}
}

// grant is the one relationship under which a (role, kind) pair is visible.
type grant struct {
	rel    Relationship
	access Access
}

// policy lists every permitted (role, kind) pair. Anything absent is denied.
// A caller sees its own scope, the level directly above as an aggregate, and
// the level directly below only as aggregates; individuals are visible only
// to themselves.
var policy = map[models.Role]map[hierarchy.Kind]grant{
	models.RoleIndividual: {
		hierarchy.KindIndividual: {RelSelf, AccessDetail},
		hierarchy.KindCommunity:  {RelParent, AccessAggregate},
	},
	models.RoleCommunityCoordinator: {
		hierarchy.KindCommunity: {RelSelf, AccessAggregate},
		hierarchy.KindRegion:    {RelParent, AccessAggregate},
	},
	models.RoleRegionalLeader: {
		hierarchy.KindCommunity: {RelChild, AccessAggregate},
		hierarchy.KindRegion:    {RelSelf, AccessAggregateWithChildren},
		hierarchy.KindCampaign:  {RelParent, AccessAggregate},
	},
	models.RoleGlobalCoordinator: {
		hierarchy.KindRegion:   {RelChild, AccessAggregate},
		hierarchy.KindCampaign: {RelSelf, AccessAggregateWithChildren},
	},
}

// Decide is the authorization policy: total over every role, target kind and
// relationship.
func Decide(role models.Role, target hierarchy.Kind, rel Relationship) Access {
	g, ok := policy[role][target]
	if !ok || g.rel != rel {
		return AccessDenied
	}
	return g.access
}

// requiredRelationship reports the only relationship that could grant access
// to target, false when the pair is denied outright.
func requiredRelationship(role models.Role, target hierarchy.Kind) (Relationship, bool) {
	g, ok := policy[role][target]
	return g.rel, ok
}
