// Package domain holds identifier helpers shared by every layer.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "parishnet/pkg/domain-errors"
)

// MaxKeyLength bounds entity keys so they fit index columns and object names.
const MaxKeyLength = 128

// NewKey returns a fresh random entity key.
func NewKey() string {
	return uuid.NewString()
}

// ParseKey validates a caller-supplied entity key.
//
// Keys are opaque but must be non-empty, at most MaxKeyLength bytes, and limited
// to [A-Za-z0-9._:-] so they are safe as object-storage path segments and
// Redis key suffixes.
func ParseKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "key is required")
	}
	if len(key) > MaxKeyLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "key must be 128 characters or less")
	}
	for _, r := range key {
		if !isKeyRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "key contains invalid character")
		}
	}
	return key, nil
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == ':':
		return true
	}
	return false
}
