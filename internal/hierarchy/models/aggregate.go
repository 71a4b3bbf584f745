package models

import (
	"maps"
	"slices"
	"time"
)

// FieldStat is the exact rollup of one numeric practice field.
type FieldStat struct {
	Sum     int64 `json:"sum"`
	Samples int64 `json:"samples"`
}

// Average returns Sum/Samples. The boolean is false when no sample exists;
// callers must treat that as "no value", never as zero.
func (f FieldStat) Average() (float64, bool) {
	if f.Samples == 0 {
		return 0, false
	}
	return float64(f.Sum) / float64(f.Samples), true
}

// Aggregate is the snapshot a parent entity holds about its qualifying
// children. It is owned by the aggregation engine and always recomputed from
// scratch; nothing else mutates it.
//
// Invariants:
//   - Count is the number of qualifying direct children
//   - Contributors, Participants, RegionSharers and GlobalSharers are counts of
//     individuals; a snapshot never carries individual identifiers
//   - Count == 0 implies every other counter is zero and Fields/TagCounts are empty
type Aggregate struct {
	Count         int64                `json:"count"`
	Contributors  int64                `json:"contributors"`
	Participants  int64                `json:"participants"`
	Fields        map[string]FieldStat `json:"fields,omitempty"`
	TagCounts     map[string]int64     `json:"tag_counts,omitempty"`
	RegionSharers int64                `json:"region_sharers"`
	GlobalSharers int64                `json:"global_sharers"`
	ComputedAt    time.Time            `json:"computed_at"`
}

// NewAggregate returns an empty snapshot stamped at now.
func NewAggregate(now time.Time) *Aggregate {
	return &Aggregate{
		Fields:     make(map[string]FieldStat),
		TagCounts:  make(map[string]int64),
		ComputedAt: now,
	}
}

// Empty reports whether no child qualified.
func (a *Aggregate) Empty() bool {
	return a == nil || a.Count == 0
}

// Average returns the per-sample average of a field; false when absent.
func (a *Aggregate) Average(field string) (float64, bool) {
	if a == nil {
		return 0, false
	}
	return a.Fields[field].Average()
}

// Tags returns the sorted tag union.
func (a *Aggregate) Tags() []string {
	if a == nil || len(a.TagCounts) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(a.TagCounts))
}

// Clone returns a deep copy.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	out := *a
	out.Fields = maps.Clone(a.Fields)
	out.TagCounts = maps.Clone(a.TagCounts)
	return &out
}

// SameValues compares two snapshots ignoring ComputedAt.
func (a *Aggregate) SameValues(b *Aggregate) bool {
	if a == nil || b == nil {
		return a.Empty() && b.Empty()
	}
	return a.Count == b.Count &&
		a.Contributors == b.Contributors &&
		a.Participants == b.Participants &&
		a.RegionSharers == b.RegionSharers &&
		a.GlobalSharers == b.GlobalSharers &&
		maps.Equal(a.Fields, b.Fields) &&
		maps.Equal(a.TagCounts, b.TagCounts)
}
