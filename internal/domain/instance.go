package domain

import "time"

// Instance is one upstream library source. Entity IDs are assigned by
// the upstream, so two instances can hand out the same ID; every entity
// row and exclusion key is scoped by instance to keep them apart.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
