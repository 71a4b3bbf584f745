package models

import (
	consent "parishnet/internal/consent/models"
)

// CreateGroupRequest creates a campaign, region or community. Key is
// generated when empty; ParentKey is ignored for campaigns and optional for
// regions.
type CreateGroupRequest struct {
	Key       string `json:"key,omitempty"`
	ParentKey string `json:"parent_key,omitempty"`
	Name      string `json:"name"`
}

// RegisterIndividualRequest registers a member of a community.
type RegisterIndividualRequest struct {
	Key          string           `json:"key,omitempty"`
	CommunityKey string           `json:"community_key"`
	Name         string           `json:"name"`
	Fields       map[string]int64 `json:"fields,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	Consent      consent.Flags    `json:"consent"`
}

// SetFieldRequest sets one practice value.
type SetFieldRequest struct {
	Value int64 `json:"value"`
}

// SetTagsRequest replaces an individual's tags.
type SetTagsRequest struct {
	Tags []string `json:"tags"`
}

// SetConsentResponse reports the flags before and after the change.
type SetConsentResponse struct {
	Previous consent.Flags `json:"previous"`
	Current  consent.Flags `json:"current"`
	Changed  bool          `json:"changed"`
}
