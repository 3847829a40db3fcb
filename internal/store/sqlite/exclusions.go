package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// exclusionRebuild is one transactional replacement of a user's
// exclusion set.
type exclusionRebuild struct {
	tx *sql.Tx
}

// BeginExclusionRebuild opens a transaction and deletes the user's
// existing exclusion records inside it. The caller inserts the new set
// through the returned handle and commits; readers see either the old
// set or the complete new one, never a mix.
func (s *Store) BeginExclusionRebuild(ctx context.Context, userID string) (store.ExclusionRebuild, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rebuild tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_exclusions WHERE user_id = ?`, userID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("clear exclusions: %w", err)
	}

	return &exclusionRebuild{tx: tx}, nil
}

// Insert batch-inserts records with skip-if-present semantics. Within a
// rebuild the engine's set is already deduplicated; OR IGNORE guards the
// natural key regardless.
func (r *exclusionRebuild) Insert(ctx context.Context, records []domain.ExclusionRecord) error {
	for _, rec := range records {
		_, err := r.tx.ExecContext(ctx, `
			INSERT INTO user_exclusions (user_id, entity_type, entity_id, instance_id, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, entity_type, entity_id, instance_id) DO NOTHING`,
			rec.UserID, string(rec.EntityType), rec.EntityID, rec.InstanceID,
			string(rec.Reason), timeToDB(rec.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert exclusion: %w", err)
		}
	}
	return nil
}

// Commit commits the rebuild transaction.
func (r *exclusionRebuild) Commit() error {
	return r.tx.Commit()
}

// Rollback aborts the rebuild, leaving the previous set in place.
func (r *exclusionRebuild) Rollback() error {
	return r.tx.Rollback()
}

// UpsertDirectExclusion writes one direct exclusion record. A derived
// (cascade/empty) record on the same key is upgraded to the direct
// reason; an existing direct record is left untouched.
func (s *Store) UpsertDirectExclusion(ctx context.Context, record domain.ExclusionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_exclusions (user_id, entity_type, entity_id, instance_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entity_type, entity_id, instance_id) DO UPDATE SET
			reason = excluded.reason
		WHERE user_exclusions.reason NOT IN ('hidden', 'restricted')`,
		record.UserID, string(record.EntityType), record.EntityID, record.InstanceID,
		string(record.Reason), timeToDB(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert direct exclusion: %w", err)
	}
	return nil
}

// InsertExclusionsIfAbsent inserts records outside any rebuild, skipping
// keys that already exist. Used by the incremental add path; inserts are
// monotonic, so a partially applied batch is a benign intermediate state
// healed by the next full recompute.
func (s *Store) InsertExclusionsIfAbsent(ctx context.Context, records []domain.ExclusionRecord) error {
	for _, rec := range records {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO user_exclusions (user_id, entity_type, entity_id, instance_id, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, entity_type, entity_id, instance_id) DO NOTHING`,
			rec.UserID, string(rec.EntityType), rec.EntityID, rec.InstanceID,
			string(rec.Reason), timeToDB(rec.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert exclusion: %w", err)
		}
	}
	return nil
}

// DeleteExclusion removes one exclusion record by its natural key.
func (s *Store) DeleteExclusion(ctx context.Context, userID string, ref domain.EntityRef) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_exclusions
		WHERE user_id = ? AND entity_type = ? AND entity_id = ? AND instance_id = ?`,
		userID, string(ref.Type), ref.ID, ref.InstanceID,
	)
	if err != nil {
		return fmt.Errorf("delete exclusion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && s.logger != nil {
		s.logger.Debug("delete matched no exclusion row",
			"user_id", userID,
			"entity_type", ref.Type,
			"entity_id", ref.ID,
		)
	}
	return nil
}

// ListExclusions returns the user's full exclusion set in stable order.
func (s *Store) ListExclusions(ctx context.Context, userID string) ([]domain.ExclusionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, entity_type, entity_id, instance_id, reason, created_at
		FROM user_exclusions
		WHERE user_id = ?
		ORDER BY entity_type, entity_id, instance_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query exclusions: %w", err)
	}
	defer rows.Close()

	var records []domain.ExclusionRecord
	for rows.Next() {
		var (
			rec          domain.ExclusionRecord
			typ, reason  string
			createdAtRaw string
		)
		if err := rows.Scan(&rec.UserID, &typ, &rec.EntityID, &rec.InstanceID, &reason, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		rec.EntityType = domain.EntityType(typ)
		rec.Reason = domain.ExclusionReason(reason)
		if rec.CreatedAt, err = timeFromDB(createdAtRaw); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// CountExclusionsByType returns per-type totals for a user's current set.
func (s *Store) CountExclusionsByType(ctx context.Context, userID string) (map[domain.EntityType]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, COUNT(*)
		FROM user_exclusions
		WHERE user_id = ?
		GROUP BY entity_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("count exclusions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EntityType]int)
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.EntityType(typ)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

// UpsertExclusionStats replaces the user's per-type stats rows. Types
// absent from counts are written as zero so dashboards see every type.
func (s *Store) UpsertExclusionStats(ctx context.Context, userID string, counts map[domain.EntityType]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := timeToDB(time.Now())
	for _, t := range domain.EntityTypes() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exclusion_stats (user_id, entity_type, excluded_count, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, entity_type) DO UPDATE SET
				excluded_count = excluded.excluded_count,
				updated_at = excluded.updated_at`,
			userID, string(t), counts[t], now,
		)
		if err != nil {
			return fmt.Errorf("upsert stats: %w", err)
		}
	}

	return tx.Commit()
}

// GetExclusionStats returns the stats rows written by the last rebuild.
func (s *Store) GetExclusionStats(ctx context.Context, userID string) (map[domain.EntityType]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, excluded_count
		FROM exclusion_stats
		WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EntityType]int)
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		counts[domain.EntityType(typ)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

// ListVisibleScenes returns an instance's scenes minus the user's
// exclusions. This anti-join is the whole coupling between browse
// consumers and the engine.
func (s *Store) ListVisibleScenes(ctx context.Context, userID, instanceID string) ([]*domain.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.instance_id, sc.title, sc.studio_id, sc.created_at, sc.updated_at
		FROM scenes sc
		WHERE sc.instance_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM user_exclusions e
			WHERE e.user_id = ? AND e.entity_type = 'scene'
			  AND e.entity_id = sc.id AND e.instance_id = sc.instance_id
		  )
		ORDER BY sc.title, sc.id`, instanceID, userID)
	if err != nil {
		return nil, fmt.Errorf("query visible scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*domain.Scene
	for rows.Next() {
		var (
			scene              domain.Scene
			studioID           sql.NullString
			createdAt, updated string
		)
		if err := rows.Scan(&scene.ID, &scene.InstanceID, &scene.Title, &studioID, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		if studioID.Valid {
			scene.StudioID = studioID.String
		}
		if scene.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		if scene.UpdatedAt, err = timeFromDB(updated); err != nil {
			return nil, err
		}
		scenes = append(scenes, &scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return scenes, nil
}

// ListVisibleGalleries returns an instance's galleries minus the user's
// exclusions.
func (s *Store) ListVisibleGalleries(ctx context.Context, userID, instanceID string) ([]*domain.Gallery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.instance_id, g.title, g.created_at, g.updated_at
		FROM galleries g
		WHERE g.instance_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM user_exclusions e
			WHERE e.user_id = ? AND e.entity_type = 'gallery'
			  AND e.entity_id = g.id AND e.instance_id = g.instance_id
		  )
		ORDER BY g.title, g.id`, instanceID, userID)
	if err != nil {
		return nil, fmt.Errorf("query visible galleries: %w", err)
	}
	defer rows.Close()

	var galleries []*domain.Gallery
	for rows.Next() {
		var (
			gallery            domain.Gallery
			createdAt, updated string
		)
		if err := rows.Scan(&gallery.ID, &gallery.InstanceID, &gallery.Title, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("scan gallery: %w", err)
		}
		if gallery.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		if gallery.UpdatedAt, err = timeFromDB(updated); err != nil {
			return nil, err
		}
		galleries = append(galleries, &gallery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return galleries, nil
}
