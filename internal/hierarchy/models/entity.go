package models

import (
	"maps"
	"slices"
	"time"

	"parishnet/pkg/domain"
	dErrors "parishnet/pkg/domain-errors"
	labels "parishnet/pkg/platform/strings"
)

const (
	// MaxFieldsPerIndividual bounds the practice-field map of a single record.
	MaxFieldsPerIndividual = 64
	// MaxFieldValue bounds a single practice value so that sums over millions
	// of records stay within int64.
	MaxFieldValue int64 = 1 << 40
)

// Entity is the stored record for every kind of the hierarchy.
//
// Invariants:
//   - Kind is valid and Key is a parseable key
//   - Individuals and communities always have a ParentKey; regions may have
//     one (campaign participation); campaigns never do
//   - ParentKey is immutable after creation (enforced by the network service)
//   - Fields and Tags are only carried by individuals
//   - Snapshot is only carried by non-individuals and only written by the
//     aggregation engine
type Entity struct {
	Kind      Kind             `json:"kind"`
	Key       string           `json:"key"`
	ParentKey string           `json:"parent_key,omitempty"`
	Name      string           `json:"name,omitempty"`
	Fields    map[string]int64 `json:"fields,omitempty"`
	Tags      []string         `json:"tags,omitempty"`
	Snapshot  *Aggregate       `json:"snapshot,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ParentRef returns the kind and key of the parent, false for roots.
func (e *Entity) ParentRef() (Kind, string, bool) {
	if e.ParentKey == "" {
		return "", "", false
	}
	parent, ok := e.Kind.Parent()
	if !ok {
		return "", "", false
	}
	return parent, e.ParentKey, true
}

// Clone returns a deep copy so stores never share maps with callers.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Fields = maps.Clone(e.Fields)
	out.Tags = slices.Clone(e.Tags)
	out.Snapshot = e.Snapshot.Clone()
	return &out
}

// Validate checks the structural invariants listed on Entity.
func (e *Entity) Validate() error {
	if !e.Kind.Valid() {
		return dErrors.New(dErrors.CodeInvariant, "entity kind is invalid")
	}
	if _, err := domain.ParseKey(e.Key); err != nil {
		return dErrors.New(dErrors.CodeInvariant, "entity key is invalid")
	}
	switch e.Kind {
	case KindIndividual, KindCommunity:
		if e.ParentKey == "" {
			return dErrors.New(dErrors.CodeInvariant, string(e.Kind)+" requires a parent")
		}
	case KindCampaign:
		if e.ParentKey != "" {
			return dErrors.New(dErrors.CodeInvariant, "campaign cannot have a parent")
		}
	}
	if e.ParentKey != "" {
		if _, err := domain.ParseKey(e.ParentKey); err != nil {
			return dErrors.New(dErrors.CodeInvariant, "parent key is invalid")
		}
	}
	if e.Kind == KindIndividual {
		if e.Snapshot != nil {
			return dErrors.New(dErrors.CodeInvariant, "individual cannot hold a snapshot")
		}
		if len(e.Fields) > MaxFieldsPerIndividual {
			return dErrors.New(dErrors.CodeInvariant, "too many practice fields")
		}
		for name, value := range e.Fields {
			if name == "" || labels.NormalizeLabel(name) != name {
				return dErrors.New(dErrors.CodeInvariant, "field name is not normalized: "+name)
			}
			if value < 0 || value > MaxFieldValue {
				return dErrors.New(dErrors.CodeInvariant, "field value out of range: "+name)
			}
		}
	} else if len(e.Fields) > 0 || len(e.Tags) > 0 {
		return dErrors.New(dErrors.CodeInvariant, string(e.Kind)+" cannot carry practice data")
	}
	return nil
}

// NewIndividual builds an individual owned by communityKey. Field names and
// tags are normalized; negative values are rejected.
func NewIndividual(key, communityKey, name string, fields map[string]int64, tags []string, now time.Time) (*Entity, error) {
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return nil, err
	}
	e := &Entity{
		Kind:      KindIndividual,
		Key:       key,
		ParentKey: communityKey,
		Name:      name,
		Fields:    normalized,
		Tags:      labels.NormalizeSet(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewCommunity builds a community owned by regionKey.
func NewCommunity(key, regionKey, name string, now time.Time) (*Entity, error) {
	return newGroup(KindCommunity, key, regionKey, name, now)
}

// NewRegion builds a region; campaignKey may be empty when the region does not
// participate in a campaign.
func NewRegion(key, campaignKey, name string, now time.Time) (*Entity, error) {
	return newGroup(KindRegion, key, campaignKey, name, now)
}

// NewCampaign builds a root campaign.
func NewCampaign(key, name string, now time.Time) (*Entity, error) {
	return newGroup(KindCampaign, key, "", name, now)
}

func newGroup(kind Kind, key, parentKey, name string, now time.Time) (*Entity, error) {
	e := &Entity{
		Kind:      kind,
		Key:       key,
		ParentKey: parentKey,
		Name:      name,
		Snapshot:  NewAggregate(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// SetField records a practice value on an individual.
func (e *Entity) SetField(name string, value int64, now time.Time) error {
	if e.Kind != KindIndividual {
		return dErrors.New(dErrors.CodeInvariant, "only individuals carry practice fields")
	}
	field := labels.NormalizeLabel(name)
	if field == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "field name is required")
	}
	if err := checkFieldValue(value); err != nil {
		return err
	}
	if _, exists := e.Fields[field]; !exists && len(e.Fields) >= MaxFieldsPerIndividual {
		return dErrors.New(dErrors.CodeInvalidInput, "too many practice fields")
	}
	if e.Fields == nil {
		e.Fields = make(map[string]int64)
	}
	e.Fields[field] = value
	e.UpdatedAt = now
	return nil
}

// RemoveField drops a practice value. Removing an absent field is a no-op that
// reports false.
func (e *Entity) RemoveField(name string, now time.Time) bool {
	field := labels.NormalizeLabel(name)
	if _, ok := e.Fields[field]; !ok {
		return false
	}
	delete(e.Fields, field)
	e.UpdatedAt = now
	return true
}

// SetTags replaces the categorical tags of an individual.
func (e *Entity) SetTags(tags []string, now time.Time) error {
	if e.Kind != KindIndividual {
		return dErrors.New(dErrors.CodeInvariant, "only individuals carry tags")
	}
	e.Tags = labels.NormalizeSet(tags)
	e.UpdatedAt = now
	return nil
}

func checkFieldValue(value int64) error {
	if value < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "field value must not be negative")
	}
	if value > MaxFieldValue {
		return dErrors.New(dErrors.CodeInvalidInput, "field value is too large")
	}
	return nil
}

// NormalizeFields validates a practice-field map and normalizes its names.
func NormalizeFields(fields map[string]int64) (map[string]int64, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > MaxFieldsPerIndividual {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many practice fields")
	}
	out := make(map[string]int64, len(fields))
	for name, value := range fields {
		field := labels.NormalizeLabel(name)
		if field == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "field name is required")
		}
		if err := checkFieldValue(value); err != nil {
			return nil, err
		}
		if _, dup := out[field]; dup {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "duplicate field after normalization: "+field)
		}
		out[field] = value
	}
	return out, nil
}

// HasPractice reports whether any practice field is positive.
func (e *Entity) HasPractice() bool {
	for _, v := range e.Fields {
		if v > 0 {
			return true
		}
	}
	return false
}
