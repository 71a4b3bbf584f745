package models

import (
	"time"

	consent "parishnet/internal/consent/models"
	hierarchy "parishnet/internal/hierarchy/models"
)

// Result carries exactly one of Detail or Aggregate.
type Result struct {
	Detail    *DetailView    `json:"detail,omitempty"`
	Aggregate *AggregateView `json:"aggregate,omitempty"`
}

// DetailView is an individual's own full record.
type DetailView struct {
	Key          string           `json:"key"`
	CommunityKey string           `json:"community_key"`
	Name         string           `json:"name,omitempty"`
	Fields       map[string]int64 `json:"fields"`
	Tags         []string         `json:"tags"`
	Consent      consent.Flags    `json:"consent"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// FieldView is one numeric rollup. Average is nil when no sample exists.
type FieldView struct {
	Sum     int64    `json:"sum"`
	Samples int64    `json:"samples"`
	Average *float64 `json:"average"`
}

// AggregateView is the aggregate-only projection of a group snapshot. It never
// carries identifiers below the direct children listed in Children.
type AggregateView struct {
	Kind         hierarchy.Kind       `json:"kind"`
	Key          string               `json:"key"`
	Name         string               `json:"name,omitempty"`
	NoData       bool                 `json:"no_data"`
	Count        int64                `json:"count"`
	Contributors int64                `json:"contributors"`
	Participants int64                `json:"participants"`
	Fields       map[string]FieldView `json:"fields,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	TagCounts    map[string]int64     `json:"tag_counts,omitempty"`
	ComputedAt   time.Time            `json:"computed_at"`
	Children     []AggregateView      `json:"children,omitempty"`
}

// NewAggregateView projects a group entity. An empty snapshot yields NoData.
func NewAggregateView(e *hierarchy.Entity) AggregateView {
	view := AggregateView{Kind: e.Kind, Key: e.Key, Name: e.Name}
	snap := e.Snapshot
	if snap == nil {
		view.NoData = true
		return view
	}
	view.ComputedAt = snap.ComputedAt
	if snap.Empty() {
		view.NoData = true
		return view
	}
	view.Count = snap.Count
	view.Contributors = snap.Contributors
	view.Participants = snap.Participants
	view.Fields = make(map[string]FieldView, len(snap.Fields))
	for name, stat := range snap.Fields {
		fv := FieldView{Sum: stat.Sum, Samples: stat.Samples}
		if avg, ok := stat.Average(); ok {
			fv.Average = &avg
		}
		view.Fields[name] = fv
	}
	view.Tags = snap.Tags()
	if len(snap.TagCounts) > 0 {
		view.TagCounts = make(map[string]int64, len(snap.TagCounts))
		for tag, n := range snap.TagCounts {
			view.TagCounts[tag] = n
		}
	}
	return view
}

// NewDetailView projects an individual with its consent flags.
func NewDetailView(e *hierarchy.Entity, flags consent.Flags) DetailView {
	fields := make(map[string]int64, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	tags := append([]string{}, e.Tags...)
	return DetailView{
		Key:          e.Key,
		CommunityKey: e.ParentKey,
		Name:         e.Name,
		Fields:       fields,
		Tags:         tags,
		Consent:      flags,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
