package domain

import "time"

// User owns hidden-entity facts, content restrictions, and the exclusion
// set the engine maintains for them. Authentication lives outside this
// service, so the user record is deliberately small.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
