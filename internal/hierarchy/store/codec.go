package store

import (
	"encoding/json"
	"fmt"

	"parishnet/internal/hierarchy/models"
)

// Persistent backends store the whole entity as a JSON document next to the
// indexed columns (kind, key, parent). Decoding re-validates so a corrupted row
// surfaces as an error instead of leaking into aggregation.

func encodeEntity(e *models.Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", e.Kind, e.Key, err)
	}
	return data, nil
}

func decodeEntity(data []byte) (*models.Entity, error) {
	var e models.Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", e.Kind, e.Key, err)
	}
	return &e, nil
}

func parentColumns(e *models.Entity) (kind, key *string) {
	parentKind, parentKey, ok := e.ParentRef()
	if !ok {
		return nil, nil
	}
	k := string(parentKind)
	return &k, &parentKey
}
