package store

import (
	"context"

	"github.com/veilapp/veil-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Instances
	CreateInstance(ctx context.Context, instance *domain.Instance) error
	GetInstance(ctx context.Context, id string) (*domain.Instance, error)
	ListInstances(ctx context.Context) ([]*domain.Instance, error)

	// Library entities (written by the upstream sync collaborator and the
	// seed command; the exclusion engine only reads the graph).
	CreateScene(ctx context.Context, scene *domain.Scene) error
	CreatePerformer(ctx context.Context, performer *domain.Performer) error
	CreateStudio(ctx context.Context, studio *domain.Studio) error
	CreateTag(ctx context.Context, tag *domain.Tag) error
	CreateGroup(ctx context.Context, group *domain.Group) error
	CreateGallery(ctx context.Context, gallery *domain.Gallery) error
	CreateImage(ctx context.Context, image *domain.Image) error
	DeleteEntity(ctx context.Context, t domain.EntityType, entityID, instanceID string) error

	// Junction links. Each call replaces the full link set for the parent.
	SetScenePerformers(ctx context.Context, sceneID, instanceID string, performerIDs []string) error
	SetSceneTags(ctx context.Context, sceneID, instanceID string, tagIDs []string) error
	SetSceneGroups(ctx context.Context, sceneID, instanceID string, groupIDs []string) error
	SetSceneGalleries(ctx context.Context, sceneID, instanceID string, galleryIDs []string) error
	SetGalleryImages(ctx context.Context, galleryID, instanceID string, imageIDs []string) error
	SetPerformerTags(ctx context.Context, performerID, instanceID string, tagIDs []string) error
	SetStudioTags(ctx context.Context, studioID, instanceID string, tagIDs []string) error
	SetGroupTags(ctx context.Context, groupID, instanceID string, tagIDs []string) error
	SetPerformerImages(ctx context.Context, performerID, instanceID string, imageIDs []string) error
	SetStudioImages(ctx context.Context, studioID, instanceID string, imageIDs []string) error

	// Relationship graph accessor. All lookups are pure reads scoped by
	// (id, instance) and safe for concurrent use.
	ScenesForPerformer(ctx context.Context, performerID, instanceID string) ([]string, error)
	ScenesForStudio(ctx context.Context, studioID, instanceID string) ([]string, error)
	ScenesForGroup(ctx context.Context, groupID, instanceID string) ([]string, error)
	ScenesForGallery(ctx context.Context, galleryID, instanceID string) ([]string, error)
	ImagesForGallery(ctx context.Context, galleryID, instanceID string) ([]string, error)
	ImagesForPerformer(ctx context.Context, performerID, instanceID string) ([]string, error)
	ImagesForStudio(ctx context.Context, studioID, instanceID string) ([]string, error)
	ScenesTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error)
	ScenesInheritingTag(ctx context.Context, tagID, instanceID string) ([]string, error)
	PerformersTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error)
	StudiosTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error)
	GroupsTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error)
	ExpandTagHierarchy(ctx context.Context, tagIDs []string, instanceID string, depth int) ([]string, error)
	ExpandStudioHierarchy(ctx context.Context, studioIDs []string, instanceID string, depth int) ([]string, error)
	ListEntityIDs(ctx context.Context, t domain.EntityType, instanceID string) ([]string, error)
	ListEntityRefs(ctx context.Context, t domain.EntityType) ([]domain.EntityRef, error)

	// User facts (hidden entities and restrictions are owned by the
	// settings surface; the engine reads them).
	UpsertHiddenEntity(ctx context.Context, hidden *domain.HiddenEntity) error
	DeleteHiddenEntity(ctx context.Context, userID string, ref domain.EntityRef) error
	ListHiddenEntities(ctx context.Context, userID string) ([]*domain.HiddenEntity, error)
	UpsertContentRestriction(ctx context.Context, restriction *domain.ContentRestriction) error
	GetContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) (*domain.ContentRestriction, error)
	DeleteContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) error
	ListContentRestrictions(ctx context.Context, userID string) ([]*domain.ContentRestriction, error)

	// Exclusion set (write-owned by the engine, read by browse consumers).
	BeginExclusionRebuild(ctx context.Context, userID string) (ExclusionRebuild, error)
	UpsertDirectExclusion(ctx context.Context, record domain.ExclusionRecord) error
	InsertExclusionsIfAbsent(ctx context.Context, records []domain.ExclusionRecord) error
	DeleteExclusion(ctx context.Context, userID string, ref domain.EntityRef) error
	ListExclusions(ctx context.Context, userID string) ([]domain.ExclusionRecord, error)
	CountExclusionsByType(ctx context.Context, userID string) (map[domain.EntityType]int, error)
	UpsertExclusionStats(ctx context.Context, userID string, counts map[domain.EntityType]int) error
	GetExclusionStats(ctx context.Context, userID string) (map[domain.EntityType]int, error)

	// Browse read path. Consumers filter by anti-joining the exclusion
	// set; this is their only coupling to the engine.
	ListVisibleScenes(ctx context.Context, userID, instanceID string) ([]*domain.Scene, error)
	ListVisibleGalleries(ctx context.Context, userID, instanceID string) ([]*domain.Gallery, error)
}

// ExclusionRebuild is one transactional replacement of a user's exclusion
// set. BeginExclusionRebuild deletes the user's existing records inside
// the transaction; the engine then inserts the direct+cascade batch and
// the empty-closure batch as two sequential calls sharing the same
// transaction, and commits. Readers never observe a half-rebuilt set.
type ExclusionRebuild interface {
	Insert(ctx context.Context, records []domain.ExclusionRecord) error
	Commit() error
	Rollback() error
}
