package domain

import "time"

// HiddenEntity is one manually hidden item, created and deleted directly
// by user action. The engine reads these rows but never writes them
// outside the add/remove entry points.
type HiddenEntity struct {
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	InstanceID string     `json:"instance_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Ref returns the entity reference this row hides.
func (h HiddenEntity) Ref() EntityRef {
	return EntityRef{Type: h.EntityType, ID: h.EntityID, InstanceID: h.InstanceID}
}
