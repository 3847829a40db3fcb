package domain

import (
	"encoding/json/v2"
	"fmt"
	"time"
)

// RestrictionMode determines how a content restriction's ID list is read.
type RestrictionMode string

const (
	// RestrictionExclude hides exactly the listed entities.
	RestrictionExclude RestrictionMode = "EXCLUDE"
	// RestrictionInclude hides everything of the type except the listed
	// entities; the engine inverts the list against the full ID universe.
	RestrictionInclude RestrictionMode = "INCLUDE"
)

// Valid reports whether m is a known restriction mode.
func (m RestrictionMode) Valid() bool {
	return m == RestrictionExclude || m == RestrictionInclude
}

// ContentRestriction is a per-type visibility policy owned by the user
// settings UI. The engine only reads these rows.
//
// EntityIDs is stored as a JSON-encoded string array. Depth controls
// hierarchy expansion for tag and studio restrictions: 0 disables
// expansion, a negative value expands without limit, and a positive
// value bounds the descent.
type ContentRestriction struct {
	UserID     string          `json:"user_id"`
	EntityType EntityType      `json:"entity_type"`
	InstanceID string          `json:"instance_id"`
	Mode       RestrictionMode `json:"mode"`
	EntityIDs  string          `json:"entity_ids"`
	Depth      int             `json:"depth"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ParseEntityIDs decodes the JSON ID list. Callers treat a decode error
// as a data-quality problem on this one restriction, not a fatal error.
func (r ContentRestriction) ParseEntityIDs() ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(r.EntityIDs), &ids); err != nil {
		return nil, fmt.Errorf("parse restriction entity ids: %w", err)
	}
	return ids, nil
}

// EncodeEntityIDs encodes ids for storage in a restriction row.
func EncodeEntityIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode restriction entity ids: %w", err)
	}
	return string(data), nil
}
