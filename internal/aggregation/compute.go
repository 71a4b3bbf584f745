package aggregation

import (
	"math"
	"time"

	consent "parishnet/internal/consent/models"
	"parishnet/internal/hierarchy/models"
	dErrors "parishnet/pkg/domain-errors"
)

// Qualifies reports whether a child with the given snapshot (or consent flags,
// for individuals) contributes to its parent. The rule is per hop:
//
//   - individual → community: the individual's own ShareToCommunity flag
//   - community → region: a non-empty snapshot with at least one region sharer
//   - region → campaign: a non-empty snapshot with at least one global sharer
func Qualifies(childKind models.Kind, snapshot *models.Aggregate, flags consent.Flags) bool {
	switch childKind {
	case models.KindIndividual:
		return flags.ShareToCommunity
	case models.KindCommunity:
		return !snapshot.Empty() && snapshot.RegionSharers > 0
	case models.KindRegion:
		return !snapshot.Empty() && snapshot.GlobalSharers > 0
	default:
		return false
	}
}

// computeCommunity builds a community snapshot from its members and their
// consent flags. Members missing from flags are treated as sharing nothing.
func computeCommunity(members []*models.Entity, flags map[string]consent.Flags, now time.Time) (*models.Aggregate, error) {
	agg := models.NewAggregate(now)
	for _, m := range members {
		f := flags[m.Key]
		if !Qualifies(models.KindIndividual, nil, f) {
			continue
		}
		agg.Count++
		agg.Contributors++
		if m.HasPractice() {
			agg.Participants++
		}
		for name, value := range m.Fields {
			stat := agg.Fields[name]
			sum, err := addSum(stat.Sum, value, name)
			if err != nil {
				return nil, err
			}
			stat.Sum = sum
			stat.Samples++
			agg.Fields[name] = stat
		}
		for _, tag := range m.Tags {
			agg.TagCounts[tag]++
		}
		if f.ShareToRegion {
			agg.RegionSharers++
		}
		if f.ShareToGlobal {
			agg.GlobalSharers++
		}
	}
	return agg, nil
}

// mergeChildren folds the snapshots of qualifying groups into a parent
// snapshot. Only child snapshots are read, never individual records.
func mergeChildren(childKind models.Kind, children []*models.Entity, now time.Time) (*models.Aggregate, error) {
	agg := models.NewAggregate(now)
	for _, c := range children {
		snap := c.Snapshot
		if !Qualifies(childKind, snap, consent.None) {
			continue
		}
		agg.Count++
		agg.Contributors += snap.Contributors
		agg.Participants += snap.Participants
		for name, s := range snap.Fields {
			stat := agg.Fields[name]
			sum, err := addSum(stat.Sum, s.Sum, name)
			if err != nil {
				return nil, err
			}
			stat.Sum = sum
			stat.Samples += s.Samples
			agg.Fields[name] = stat
		}
		for tag, n := range snap.TagCounts {
			agg.TagCounts[tag] += n
		}
		agg.RegionSharers += snap.RegionSharers
		agg.GlobalSharers += snap.GlobalSharers
	}
	return agg, nil
}

// addSum adds two non-negative field sums, refusing to wrap.
func addSum(total, value int64, field string) (int64, error) {
	if value < 0 || total > math.MaxInt64-value {
		return 0, dErrors.New(dErrors.CodeInvariant, "sum of field "+field+" exceeds the int64 range")
	}
	return total + value, nil
}
