package models

import (
	dErrors "parishnet/pkg/domain-errors"
)

// Kind names a level of the hierarchy. Levels form a strict tree:
// individual → community → region → campaign.
type Kind string

const (
	KindIndividual Kind = "individual"
	KindCommunity  Kind = "community"
	KindRegion     Kind = "region"
	KindCampaign   Kind = "campaign"
)

// Kinds lists every kind bottom-up.
var Kinds = []Kind{KindIndividual, KindCommunity, KindRegion, KindCampaign}

// ParseKind validates a kind received at a trust boundary.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !k.Valid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown entity kind: "+raw)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k.Level() >= 0
}

// Level returns 0 for individuals up to 3 for campaigns, -1 for unknown kinds.
func (k Kind) Level() int {
	switch k {
	case KindIndividual:
		return 0
	case KindCommunity:
		return 1
	case KindRegion:
		return 2
	case KindCampaign:
		return 3
	default:
		return -1
	}
}

// Parent returns the kind one level up. Campaigns have no parent.
func (k Kind) Parent() (Kind, bool) {
	switch k {
	case KindIndividual:
		return KindCommunity, true
	case KindCommunity:
		return KindRegion, true
	case KindRegion:
		return KindCampaign, true
	default:
		return "", false
	}
}

// Child returns the kind one level down. Individuals have no children.
func (k Kind) Child() (Kind, bool) {
	switch k {
	case KindCommunity:
		return KindIndividual, true
	case KindRegion:
		return KindCommunity, true
	case KindCampaign:
		return KindRegion, true
	default:
		return "", false
	}
}

func (k Kind) String() string {
	return string(k)
}
