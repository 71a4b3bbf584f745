package handler

import (
	"strings"

	consent "parishnet/internal/consent/models"
	"parishnet/internal/hierarchy/models"
	network "parishnet/internal/network/models"
	dErrors "parishnet/pkg/domain-errors"
)

const (
	maxNameLength = 200
	maxTags       = 64
)

// CreateGroupBody is the body of POST /campaigns, /regions and /communities.
type CreateGroupBody struct {
	network.CreateGroupRequest
}

// Validate implements httputil.Validatable.
func (b *CreateGroupBody) Validate() error {
	b.Key = strings.TrimSpace(b.Key)
	b.ParentKey = strings.TrimSpace(b.ParentKey)
	b.Name = strings.TrimSpace(b.Name)
	if len(b.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeInvalidInput, "name is too long")
	}
	return nil
}

// RegisterIndividualBody is the body of POST /individuals.
type RegisterIndividualBody struct {
	network.RegisterIndividualRequest
}

// Validate implements httputil.Validatable.
func (b *RegisterIndividualBody) Validate() error {
	b.Key = strings.TrimSpace(b.Key)
	b.CommunityKey = strings.TrimSpace(b.CommunityKey)
	b.Name = strings.TrimSpace(b.Name)
	if b.CommunityKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "community_key is required")
	}
	if len(b.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeInvalidInput, "name is too long")
	}
	if len(b.Fields) > models.MaxFieldsPerIndividual {
		return dErrors.New(dErrors.CodeInvalidInput, "too many fields")
	}
	if len(b.Tags) > maxTags {
		return dErrors.New(dErrors.CodeInvalidInput, "too many tags")
	}
	return nil
}

// SetFieldBody is the body of PUT /individuals/{key}/fields/{name}.
type SetFieldBody struct {
	network.SetFieldRequest
}

// Validate implements httputil.Validatable.
func (b *SetFieldBody) Validate() error {
	return nil
}

// SetTagsBody is the body of PUT /individuals/{key}/tags.
type SetTagsBody struct {
	network.SetTagsRequest
}

// Validate implements httputil.Validatable.
func (b *SetTagsBody) Validate() error {
	if len(b.Tags) > maxTags {
		return dErrors.New(dErrors.CodeInvalidInput, "too many tags")
	}
	return nil
}

// SetConsentBody is the body of PUT /individuals/{key}/consent.
type SetConsentBody struct {
	consent.Flags
}

// Validate implements httputil.Validatable.
func (b *SetConsentBody) Validate() error {
	return nil
}
