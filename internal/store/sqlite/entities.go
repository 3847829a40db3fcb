package sqlite

import (
	"context"
	"fmt"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// Entity writes are upserts on (id, instance_id): upstream instances
// push the same IDs repeatedly, and the newest payload wins. created_at
// is kept from the first sighting.

// CreateScene upserts a scene row.
func (s *Store) CreateScene(ctx context.Context, scene *domain.Scene) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, instance_id, title, studio_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			title = excluded.title,
			studio_id = excluded.studio_id,
			updated_at = excluded.updated_at`,
		scene.ID, scene.InstanceID, scene.Title, nullString(scene.StudioID),
		timeToDB(scene.CreatedAt), timeToDB(scene.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert scene: %w", err)
	}
	return nil
}

// CreatePerformer upserts a performer row.
func (s *Store) CreatePerformer(ctx context.Context, performer *domain.Performer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performers (id, instance_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		performer.ID, performer.InstanceID, performer.Name,
		timeToDB(performer.CreatedAt), timeToDB(performer.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert performer: %w", err)
	}
	return nil
}

// CreateStudio upserts a studio row.
func (s *Store) CreateStudio(ctx context.Context, studio *domain.Studio) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO studios (id, instance_id, name, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id,
			updated_at = excluded.updated_at`,
		studio.ID, studio.InstanceID, studio.Name, nullString(studio.ParentID),
		timeToDB(studio.CreatedAt), timeToDB(studio.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert studio: %w", err)
	}
	return nil
}

// CreateTag upserts a tag row.
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, instance_id, name, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id,
			updated_at = excluded.updated_at`,
		tag.ID, tag.InstanceID, tag.Name, nullString(tag.ParentID),
		timeToDB(tag.CreatedAt), timeToDB(tag.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert tag: %w", err)
	}
	return nil
}

// CreateGroup upserts a group row.
func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_groups (id, instance_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		group.ID, group.InstanceID, group.Name,
		timeToDB(group.CreatedAt), timeToDB(group.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// CreateGallery upserts a gallery row.
func (s *Store) CreateGallery(ctx context.Context, gallery *domain.Gallery) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO galleries (id, instance_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at`,
		gallery.ID, gallery.InstanceID, gallery.Title,
		timeToDB(gallery.CreatedAt), timeToDB(gallery.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert gallery: %w", err)
	}
	return nil
}

// CreateImage upserts an image row.
func (s *Store) CreateImage(ctx context.Context, image *domain.Image) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, instance_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id, instance_id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at`,
		image.ID, image.InstanceID, image.Title,
		timeToDB(image.CreatedAt), timeToDB(image.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert image: %w", err)
	}
	return nil
}

// DeleteEntity removes an entity row. Junction rows referencing it are
// left behind; graph reads join through the entity tables, so they drop
// out of every query.
func (s *Store) DeleteEntity(ctx context.Context, t domain.EntityType, entityID, instanceID string) error {
	table, err := entityTable(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND instance_id = ?`, table),
		entityID, instanceID,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage(fmt.Sprintf("%s %s not found", t, entityID))
	}
	return nil
}

// replaceLinks swaps the full child set for one parent in a junction
// table within a single transaction.
func (s *Store) replaceLinks(ctx context.Context, table, parentCol, childCol, parentID, instanceID string, childIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	deleteStmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND instance_id = ?`, table, parentCol)
	if _, err := tx.ExecContext(ctx, deleteStmt, parentID, instanceID); err != nil {
		return fmt.Errorf("delete %s links: %w", table, err)
	}

	insertStmt := fmt.Sprintf(`INSERT INTO %s (%s, %s, instance_id) VALUES (?, ?, ?)`, table, parentCol, childCol)
	for _, childID := range childIDs {
		if _, err := tx.ExecContext(ctx, insertStmt, parentID, childID, instanceID); err != nil {
			return fmt.Errorf("insert %s link: %w", table, err)
		}
	}

	return tx.Commit()
}

// SetScenePerformers replaces the performers linked to a scene.
func (s *Store) SetScenePerformers(ctx context.Context, sceneID, instanceID string, performerIDs []string) error {
	return s.replaceLinks(ctx, "scene_performers", "scene_id", "performer_id", sceneID, instanceID, performerIDs)
}

// SetSceneTags replaces the tags on a scene.
func (s *Store) SetSceneTags(ctx context.Context, sceneID, instanceID string, tagIDs []string) error {
	return s.replaceLinks(ctx, "scene_tags", "scene_id", "tag_id", sceneID, instanceID, tagIDs)
}

// SetSceneGroups replaces the groups a scene belongs to.
func (s *Store) SetSceneGroups(ctx context.Context, sceneID, instanceID string, groupIDs []string) error {
	return s.replaceLinks(ctx, "scene_groups", "scene_id", "group_id", sceneID, instanceID, groupIDs)
}

// SetSceneGalleries replaces the galleries linked to a scene.
func (s *Store) SetSceneGalleries(ctx context.Context, sceneID, instanceID string, galleryIDs []string) error {
	return s.replaceLinks(ctx, "scene_galleries", "scene_id", "gallery_id", sceneID, instanceID, galleryIDs)
}

// SetGalleryImages replaces the images contained in a gallery.
func (s *Store) SetGalleryImages(ctx context.Context, galleryID, instanceID string, imageIDs []string) error {
	return s.replaceLinks(ctx, "gallery_images", "gallery_id", "image_id", galleryID, instanceID, imageIDs)
}

// SetPerformerTags replaces the tags on a performer.
func (s *Store) SetPerformerTags(ctx context.Context, performerID, instanceID string, tagIDs []string) error {
	return s.replaceLinks(ctx, "performer_tags", "performer_id", "tag_id", performerID, instanceID, tagIDs)
}

// SetStudioTags replaces the tags on a studio.
func (s *Store) SetStudioTags(ctx context.Context, studioID, instanceID string, tagIDs []string) error {
	return s.replaceLinks(ctx, "studio_tags", "studio_id", "tag_id", studioID, instanceID, tagIDs)
}

// SetGroupTags replaces the tags on a group.
func (s *Store) SetGroupTags(ctx context.Context, groupID, instanceID string, tagIDs []string) error {
	return s.replaceLinks(ctx, "group_tags", "group_id", "tag_id", groupID, instanceID, tagIDs)
}

// SetPerformerImages replaces the images linked to a performer.
func (s *Store) SetPerformerImages(ctx context.Context, performerID, instanceID string, imageIDs []string) error {
	return s.replaceLinks(ctx, "performer_images", "performer_id", "image_id", performerID, instanceID, imageIDs)
}

// SetStudioImages replaces the images linked to a studio.
func (s *Store) SetStudioImages(ctx context.Context, studioID, instanceID string, imageIDs []string) error {
	return s.replaceLinks(ctx, "studio_images", "studio_id", "image_id", studioID, instanceID, imageIDs)
}
