package models

// Flags are an individual's opt-in decisions, one per aggregation hop.
// Each flag gates its own hop only; none implies another. The zero value
// shares nothing, which is also what the registry returns for unknown
// individuals.
type Flags struct {
	ShareToCommunity bool `json:"share_to_community"`
	ShareToRegion    bool `json:"share_to_region"`
	ShareToGlobal    bool `json:"share_to_global"`
}

// None is the fail-closed default.
var None = Flags{}

// All opts in at every hop.
var All = Flags{ShareToCommunity: true, ShareToRegion: true, ShareToGlobal: true}

// IsZero reports whether nothing is shared.
func (f Flags) IsZero() bool {
	return f == None
}

// Changed lists the hops whose decision differs between prev and f.
func (f Flags) Changed(prev Flags) []Hop {
	var hops []Hop
	if f.ShareToCommunity != prev.ShareToCommunity {
		hops = append(hops, HopCommunity)
	}
	if f.ShareToRegion != prev.ShareToRegion {
		hops = append(hops, HopRegion)
	}
	if f.ShareToGlobal != prev.ShareToGlobal {
		hops = append(hops, HopGlobal)
	}
	return hops
}

// Hop identifies an aggregation level an individual may contribute to.
type Hop string

const (
	HopCommunity Hop = "community"
	HopRegion    Hop = "region"
	HopGlobal    Hop = "global"
)

// Allows reports whether the flags permit contribution at hop.
func (f Flags) Allows(hop Hop) bool {
	switch hop {
	case HopCommunity:
		return f.ShareToCommunity
	case HopRegion:
		return f.ShareToRegion
	case HopGlobal:
		return f.ShareToGlobal
	default:
		return false
	}
}
