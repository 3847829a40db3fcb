package domain

import "time"

// Scene is a single video item. Scenes link to performers, tags, groups,
// and galleries through junction rows, and to at most one studio.
type Scene struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Title      string    `json:"title"`
	StudioID   string    `json:"studio_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Performer appears in scenes and images.
type Performer struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Studio produces scenes and images. Studios form a hierarchy through
// ParentID; restriction depth expansion walks it.
type Studio struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tag labels scenes, performers, studios, and groups. Tags form a
// hierarchy through ParentID: a scene tagged with a child tag inherits
// the ancestors for restriction purposes.
type Tag struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsRoot reports whether the tag has no parent.
func (t Tag) IsRoot() bool { return t.ParentID == "" }

// Group is a curated collection of scenes (a movie, a series run).
type Group struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Gallery is an ordered set of images, optionally linked to scenes.
type Gallery struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Image is a single picture, contained in galleries and linked to
// performers and studios.
type Image struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
