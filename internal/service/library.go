// Package service provides the business logic layer: the catalog mirror,
// the visibility exclusion engine, and the filtered browse surface.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilapp/veil-server/internal/domain"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/id"
	"github.com/veilapp/veil-server/internal/store"
)

// LibraryService maintains the mirrored catalog: users, upstream
// instances, entities, and the relationship graph an ingest sync writes.
type LibraryService struct {
	store  store.Store
	logger *slog.Logger
}

// NewLibraryService creates a library service.
func NewLibraryService(st store.Store, logger *slog.Logger) *LibraryService {
	return &LibraryService{store: st, logger: logger}
}

// CreateUser registers a user. The ID is generated server-side.
func (s *LibraryService) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.Validation("user name is required")
	}

	userID, err := id.Generate("usr")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate user ID")
	}

	now := time.Now()
	user := &domain.User{
		ID:        userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "name", user.Name)
	return user, nil
}

// GetUser returns one user.
func (s *LibraryService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ListUsers returns all users.
func (s *LibraryService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.store.ListUsers(ctx)
}

// RegisterInstance records an upstream library source. Upstreams do not
// name themselves, so instance IDs are minted here.
func (s *LibraryService) RegisterInstance(ctx context.Context, name, sourceURL string) (*domain.Instance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.Validation("instance name is required")
	}

	now := time.Now()
	instance := &domain.Instance{
		ID:        uuid.New().String(),
		Name:      name,
		SourceURL: sourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}

	s.logger.Info("instance registered", "instance_id", instance.ID, "name", instance.Name)
	return instance, nil
}

// GetInstance returns one instance.
func (s *LibraryService) GetInstance(ctx context.Context, instanceID string) (*domain.Instance, error) {
	return s.store.GetInstance(ctx, instanceID)
}

// ListInstances returns all registered instances.
func (s *LibraryService) ListInstances(ctx context.Context) ([]*domain.Instance, error) {
	return s.store.ListInstances(ctx)
}

// requireInstance rejects ingest writes against an unknown instance so a
// typo cannot create an orphan shadow catalog.
func (s *LibraryService) requireInstance(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return domainerrors.Validation("instance id is required")
	}
	_, err := s.store.GetInstance(ctx, instanceID)
	return err
}

// IngestScene upserts a scene from an upstream sync. Entity IDs come
// from the upstream and are required.
func (s *LibraryService) IngestScene(ctx context.Context, scene *domain.Scene) error {
	if scene.ID == "" {
		return domainerrors.Validation("scene id is required")
	}
	if err := s.requireInstance(ctx, scene.InstanceID); err != nil {
		return err
	}
	stampEntity(&scene.CreatedAt, &scene.UpdatedAt)
	return s.store.CreateScene(ctx, scene)
}

// IngestPerformer upserts a performer from an upstream sync.
func (s *LibraryService) IngestPerformer(ctx context.Context, performer *domain.Performer) error {
	if performer.ID == "" {
		return domainerrors.Validation("performer id is required")
	}
	if err := s.requireInstance(ctx, performer.InstanceID); err != nil {
		return err
	}
	stampEntity(&performer.CreatedAt, &performer.UpdatedAt)
	return s.store.CreatePerformer(ctx, performer)
}

// IngestStudio upserts a studio from an upstream sync.
func (s *LibraryService) IngestStudio(ctx context.Context, studio *domain.Studio) error {
	if studio.ID == "" {
		return domainerrors.Validation("studio id is required")
	}
	if err := s.requireInstance(ctx, studio.InstanceID); err != nil {
		return err
	}
	stampEntity(&studio.CreatedAt, &studio.UpdatedAt)
	return s.store.CreateStudio(ctx, studio)
}

// IngestTag upserts a tag from an upstream sync.
func (s *LibraryService) IngestTag(ctx context.Context, tag *domain.Tag) error {
	if tag.ID == "" {
		return domainerrors.Validation("tag id is required")
	}
	if err := s.requireInstance(ctx, tag.InstanceID); err != nil {
		return err
	}
	stampEntity(&tag.CreatedAt, &tag.UpdatedAt)
	return s.store.CreateTag(ctx, tag)
}

// IngestGroup upserts a group from an upstream sync.
func (s *LibraryService) IngestGroup(ctx context.Context, group *domain.Group) error {
	if group.ID == "" {
		return domainerrors.Validation("group id is required")
	}
	if err := s.requireInstance(ctx, group.InstanceID); err != nil {
		return err
	}
	stampEntity(&group.CreatedAt, &group.UpdatedAt)
	return s.store.CreateGroup(ctx, group)
}

// IngestGallery upserts a gallery from an upstream sync.
func (s *LibraryService) IngestGallery(ctx context.Context, gallery *domain.Gallery) error {
	if gallery.ID == "" {
		return domainerrors.Validation("gallery id is required")
	}
	if err := s.requireInstance(ctx, gallery.InstanceID); err != nil {
		return err
	}
	stampEntity(&gallery.CreatedAt, &gallery.UpdatedAt)
	return s.store.CreateGallery(ctx, gallery)
}

// IngestImage upserts an image from an upstream sync.
func (s *LibraryService) IngestImage(ctx context.Context, image *domain.Image) error {
	if image.ID == "" {
		return domainerrors.Validation("image id is required")
	}
	if err := s.requireInstance(ctx, image.InstanceID); err != nil {
		return err
	}
	stampEntity(&image.CreatedAt, &image.UpdatedAt)
	return s.store.CreateImage(ctx, image)
}

// DeleteEntity removes an entity the upstream no longer has. Exclusion
// rows pointing at it become stale until the next recompute, which is
// harmless: they only suppress an entity that no longer exists.
func (s *LibraryService) DeleteEntity(ctx context.Context, t domain.EntityType, entityID, instanceID string) error {
	if !t.Valid() {
		return domainerrors.Validationf("unknown entity type %q", t)
	}
	if entityID == "" {
		return domainerrors.Validation("entity id is required")
	}
	if err := s.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	return s.store.DeleteEntity(ctx, t, entityID, instanceID)
}

// LinkKind names one relationship-graph junction for SetLinks.
type LinkKind string

const (
	LinkScenePerformers LinkKind = "scene_performers"
	LinkSceneTags       LinkKind = "scene_tags"
	LinkSceneGroups     LinkKind = "scene_groups"
	LinkSceneGalleries  LinkKind = "scene_galleries"
	LinkGalleryImages   LinkKind = "gallery_images"
	LinkPerformerTags   LinkKind = "performer_tags"
	LinkStudioTags      LinkKind = "studio_tags"
	LinkGroupTags       LinkKind = "group_tags"
	LinkPerformerImages LinkKind = "performer_images"
	LinkStudioImages    LinkKind = "studio_images"
)

// SetLinks replaces one entity's junction rows for a single relationship
// kind, matching how an upstream sync delivers complete link lists.
func (s *LibraryService) SetLinks(ctx context.Context, kind LinkKind, ownerID, instanceID string, relatedIDs []string) error {
	if ownerID == "" {
		return domainerrors.Validation("owner id is required")
	}
	if err := s.requireInstance(ctx, instanceID); err != nil {
		return err
	}

	switch kind {
	case LinkScenePerformers:
		return s.store.SetScenePerformers(ctx, ownerID, instanceID, relatedIDs)
	case LinkSceneTags:
		return s.store.SetSceneTags(ctx, ownerID, instanceID, relatedIDs)
	case LinkSceneGroups:
		return s.store.SetSceneGroups(ctx, ownerID, instanceID, relatedIDs)
	case LinkSceneGalleries:
		return s.store.SetSceneGalleries(ctx, ownerID, instanceID, relatedIDs)
	case LinkGalleryImages:
		return s.store.SetGalleryImages(ctx, ownerID, instanceID, relatedIDs)
	case LinkPerformerTags:
		return s.store.SetPerformerTags(ctx, ownerID, instanceID, relatedIDs)
	case LinkStudioTags:
		return s.store.SetStudioTags(ctx, ownerID, instanceID, relatedIDs)
	case LinkGroupTags:
		return s.store.SetGroupTags(ctx, ownerID, instanceID, relatedIDs)
	case LinkPerformerImages:
		return s.store.SetPerformerImages(ctx, ownerID, instanceID, relatedIDs)
	case LinkStudioImages:
		return s.store.SetStudioImages(ctx, ownerID, instanceID, relatedIDs)
	default:
		return domainerrors.Validationf("unknown link kind %q", kind)
	}
}

func stampEntity(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
