// Package domain contains the core types for the Veil media library model.
package domain

// EntityType identifies one of the entity kinds tracked by the library.
//
// The set is closed: every operation that dispatches on entity type does
// so with an exhaustive switch, so adding a type forces each call site
// to be revisited.
type EntityType string

const (
	EntityScene     EntityType = "scene"
	EntityPerformer EntityType = "performer"
	EntityStudio    EntityType = "studio"
	EntityTag       EntityType = "tag"
	EntityGroup     EntityType = "group"
	EntityGallery   EntityType = "gallery"
	EntityImage     EntityType = "image"
)

// EntityTypes returns all entity types in stable order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityScene,
		EntityPerformer,
		EntityStudio,
		EntityTag,
		EntityGroup,
		EntityGallery,
		EntityImage,
	}
}

// Valid reports whether t names a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityScene, EntityPerformer, EntityStudio, EntityTag,
		EntityGroup, EntityGallery, EntityImage:
		return true
	default:
		return false
	}
}

// Restrictable reports whether content restrictions may target this type.
// Scenes and images are only ever hidden individually or reached by cascade.
func (t EntityType) Restrictable() bool {
	switch t {
	case EntityTag, EntityStudio, EntityPerformer, EntityGroup, EntityGallery:
		return true
	case EntityScene, EntityImage:
		return false
	default:
		return false
	}
}

// Hierarchical reports whether the type forms a parent/child hierarchy
// that restriction depth expansion applies to.
func (t EntityType) Hierarchical() bool {
	return t == EntityTag || t == EntityStudio
}

// EntityRef identifies a single entity. Entity IDs are only unique within
// one upstream library instance, so every reference carries the instance ID.
type EntityRef struct {
	Type       EntityType `json:"type"`
	ID         string     `json:"id"`
	InstanceID string     `json:"instance_id"`
}

// Ref is a convenience constructor for EntityRef.
func Ref(t EntityType, id, instanceID string) EntityRef {
	return EntityRef{Type: t, ID: id, InstanceID: instanceID}
}
