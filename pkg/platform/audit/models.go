// Package audit defines the audit trail emitted by write operations.
//
// Events carry entity keys and decisions only, never practice values, so the
// trail itself respects the aggregation privacy rules.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by retention and delivery guarantees.
type EventCategory string

const (
	// CategoryCompliance covers consent changes and the lifecycle of personal
	// records. Emission is fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers structure management and routine updates.
	// Emission is best-effort.
	CategoryOperations EventCategory = "operations"
)

// Event is one audit record.
type Event struct {
	ID          string        `json:"id"`
	Category    EventCategory `json:"category"`
	Timestamp   time.Time     `json:"timestamp"`
	SubjectKind string        `json:"subject_kind"`
	Subject     string        `json:"subject"`
	Action      string        `json:"action"`
	Decision    string        `json:"decision,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	ActorID     string        `json:"actor_id,omitempty"`
}

type AuditEvent string

const (
	EventCampaignCreated      AuditEvent = "campaign_created"
	EventRegionCreated        AuditEvent = "region_created"
	EventCommunityCreated     AuditEvent = "community_created"
	EventIndividualRegistered AuditEvent = "individual_registered"
	EventIndividualRemoved    AuditEvent = "individual_removed"
	EventFieldUpdated         AuditEvent = "field_updated"
	EventFieldRemoved         AuditEvent = "field_removed"
	EventTagsUpdated          AuditEvent = "tags_updated"
	EventConsentChanged       AuditEvent = "consent_changed"
	EventSnapshotsRebuilt     AuditEvent = "snapshots_rebuilt"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIndividualRegistered: CategoryCompliance,
	EventIndividualRemoved:    CategoryCompliance,
	EventConsentChanged:       CategoryCompliance,
}

// Category returns the category of an action. Unknown actions are operations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
