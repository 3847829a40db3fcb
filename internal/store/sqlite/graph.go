package sqlite

import (
	"context"
	"fmt"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// Relationship graph accessor. Every lookup is a pure read scoped by
// (id, instance_id). Junction rows are joined back through the entity
// tables so rows referencing deleted entities drop out silently.

// ScenesForPerformer returns the IDs of scenes a performer appears in.
func (s *Store) ScenesForPerformer(ctx context.Context, performerID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT sp.scene_id
		FROM scene_performers sp
		JOIN scenes sc ON sc.id = sp.scene_id AND sc.instance_id = sp.instance_id
		WHERE sp.performer_id = ? AND sp.instance_id = ?
		ORDER BY sp.scene_id`,
		performerID, instanceID)
}

// ScenesForStudio returns the IDs of scenes produced by a studio.
func (s *Store) ScenesForStudio(ctx context.Context, studioID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT id FROM scenes
		WHERE studio_id = ? AND instance_id = ?
		ORDER BY id`,
		studioID, instanceID)
}

// ScenesForGroup returns the IDs of scenes in a group.
func (s *Store) ScenesForGroup(ctx context.Context, groupID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT sg.scene_id
		FROM scene_groups sg
		JOIN scenes sc ON sc.id = sg.scene_id AND sc.instance_id = sg.instance_id
		WHERE sg.group_id = ? AND sg.instance_id = ?
		ORDER BY sg.scene_id`,
		groupID, instanceID)
}

// ScenesForGallery returns the IDs of scenes linked to a gallery.
func (s *Store) ScenesForGallery(ctx context.Context, galleryID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT sg.scene_id
		FROM scene_galleries sg
		JOIN scenes sc ON sc.id = sg.scene_id AND sc.instance_id = sg.instance_id
		WHERE sg.gallery_id = ? AND sg.instance_id = ?
		ORDER BY sg.scene_id`,
		galleryID, instanceID)
}

// ImagesForGallery returns the IDs of images contained in a gallery.
func (s *Store) ImagesForGallery(ctx context.Context, galleryID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT gi.image_id
		FROM gallery_images gi
		JOIN images i ON i.id = gi.image_id AND i.instance_id = gi.instance_id
		WHERE gi.gallery_id = ? AND gi.instance_id = ?
		ORDER BY gi.image_id`,
		galleryID, instanceID)
}

// ImagesForPerformer returns the IDs of images a performer appears in.
func (s *Store) ImagesForPerformer(ctx context.Context, performerID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT pi.image_id
		FROM performer_images pi
		JOIN images i ON i.id = pi.image_id AND i.instance_id = pi.instance_id
		WHERE pi.performer_id = ? AND pi.instance_id = ?
		ORDER BY pi.image_id`,
		performerID, instanceID)
}

// ImagesForStudio returns the IDs of images produced by a studio.
func (s *Store) ImagesForStudio(ctx context.Context, studioID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT si.image_id
		FROM studio_images si
		JOIN images i ON i.id = si.image_id AND i.instance_id = si.instance_id
		WHERE si.studio_id = ? AND si.instance_id = ?
		ORDER BY si.image_id`,
		studioID, instanceID)
}

// ScenesTaggedWith returns the IDs of scenes carrying the tag directly.
func (s *Store) ScenesTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT st.scene_id
		FROM scene_tags st
		JOIN scenes sc ON sc.id = st.scene_id AND sc.instance_id = st.instance_id
		WHERE st.tag_id = ? AND st.instance_id = ?
		ORDER BY st.scene_id`,
		tagID, instanceID)
}

// ScenesInheritingTag returns the IDs of scenes that inherit the tag
// through the hierarchy: scenes tagged with any strict descendant.
// Scenes carrying the tag directly are reported by ScenesTaggedWith.
func (s *Store) ScenesInheritingTag(ctx context.Context, tagID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM tags WHERE instance_id = ? AND parent_id = ?
			UNION
			SELECT t.id FROM tags t
			JOIN descendants d ON t.parent_id = d.id
			WHERE t.instance_id = ?
		)
		SELECT DISTINCT st.scene_id
		FROM scene_tags st
		JOIN descendants d ON d.id = st.tag_id
		JOIN scenes sc ON sc.id = st.scene_id AND sc.instance_id = st.instance_id
		WHERE st.instance_id = ?
		ORDER BY st.scene_id`,
		instanceID, tagID, instanceID, instanceID)
}

// PerformersTaggedWith returns the IDs of performers carrying the tag.
func (s *Store) PerformersTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT pt.performer_id
		FROM performer_tags pt
		JOIN performers p ON p.id = pt.performer_id AND p.instance_id = pt.instance_id
		WHERE pt.tag_id = ? AND pt.instance_id = ?
		ORDER BY pt.performer_id`,
		tagID, instanceID)
}

// StudiosTaggedWith returns the IDs of studios carrying the tag.
func (s *Store) StudiosTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT st.studio_id
		FROM studio_tags st
		JOIN studios sd ON sd.id = st.studio_id AND sd.instance_id = st.instance_id
		WHERE st.tag_id = ? AND st.instance_id = ?
		ORDER BY st.studio_id`,
		tagID, instanceID)
}

// GroupsTaggedWith returns the IDs of groups carrying the tag.
func (s *Store) GroupsTaggedWith(ctx context.Context, tagID, instanceID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT gt.group_id
		FROM group_tags gt
		JOIN media_groups g ON g.id = gt.group_id AND g.instance_id = gt.instance_id
		WHERE gt.tag_id = ? AND gt.instance_id = ?
		ORDER BY gt.group_id`,
		tagID, instanceID)
}

// ExpandTagHierarchy resolves tag IDs plus a depth into the set of
// themselves and their descendants. Depth 0 disables expansion, a
// negative depth descends without limit.
func (s *Store) ExpandTagHierarchy(ctx context.Context, tagIDs []string, instanceID string, depth int) ([]string, error) {
	return s.expandHierarchy(ctx, "tags", tagIDs, instanceID, depth)
}

// ExpandStudioHierarchy resolves studio IDs plus a depth into the set of
// themselves and their descendants.
func (s *Store) ExpandStudioHierarchy(ctx context.Context, studioIDs []string, instanceID string, depth int) ([]string, error) {
	return s.expandHierarchy(ctx, "studios", studioIDs, instanceID, depth)
}

func (s *Store) expandHierarchy(ctx context.Context, table string, ids []string, instanceID string, depth int) ([]string, error) {
	if depth == 0 || len(ids) == 0 {
		out := make([]string, len(ids))
		copy(out, ids)
		return out, nil
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE expanded(id, lvl) AS (
			SELECT id, 0 FROM %[1]s WHERE instance_id = ? AND id IN (%[2]s)
			UNION
			SELECT t.id, e.lvl + 1
			FROM %[1]s t
			JOIN expanded e ON t.parent_id = e.id
			WHERE t.instance_id = ? AND (? < 0 OR e.lvl < ?)
		)
		SELECT DISTINCT id FROM expanded ORDER BY id`,
		table, placeholders(len(ids)))

	args := make([]any, 0, len(ids)+4)
	args = append(args, instanceID)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, instanceID, depth, depth)

	return s.queryIDs(ctx, query, args...)
}

// ListEntityIDs enumerates every ID of one entity type within an
// instance. Used for INCLUDE-mode restriction inversion.
func (s *Store) ListEntityIDs(ctx context.Context, t domain.EntityType, instanceID string) ([]string, error) {
	table, err := entityTable(t)
	if err != nil {
		return nil, err
	}
	return s.queryIDs(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE instance_id = ? ORDER BY id`, table), instanceID)
}

// ListEntityRefs enumerates every entity of one type across all
// instances. Used by the empty-entity closure.
func (s *Store) ListEntityRefs(ctx context.Context, t domain.EntityType) ([]domain.EntityRef, error) {
	table, err := entityTable(t)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, instance_id FROM %s ORDER BY instance_id, id`, table))
	if err != nil {
		return nil, fmt.Errorf("query %s refs: %w", table, err)
	}
	defer rows.Close()

	var refs []domain.EntityRef
	for rows.Next() {
		ref := domain.EntityRef{Type: t}
		if err := rows.Scan(&ref.ID, &ref.InstanceID); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return refs, nil
}

func entityTable(t domain.EntityType) (string, error) {
	switch t {
	case domain.EntityScene:
		return "scenes", nil
	case domain.EntityPerformer:
		return "performers", nil
	case domain.EntityStudio:
		return "studios", nil
	case domain.EntityTag:
		return "tags", nil
	case domain.EntityGroup:
		return "media_groups", nil
	case domain.EntityGallery:
		return "galleries", nil
	case domain.EntityImage:
		return "images", nil
	default:
		return "", store.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown entity type %q", t))
	}
}
