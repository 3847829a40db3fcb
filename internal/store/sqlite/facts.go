package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// UpsertHiddenEntity records a manually hidden item. Re-hiding an
// already hidden entity is a no-op.
func (s *Store) UpsertHiddenEntity(ctx context.Context, hidden *domain.HiddenEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_hidden_entities (user_id, entity_type, entity_id, instance_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entity_type, entity_id, instance_id) DO NOTHING`,
		hidden.UserID, string(hidden.EntityType), hidden.EntityID, hidden.InstanceID,
		timeToDB(hidden.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert hidden entity: %w", err)
	}
	return nil
}

// DeleteHiddenEntity removes a hidden-entity fact.
func (s *Store) DeleteHiddenEntity(ctx context.Context, userID string, ref domain.EntityRef) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_hidden_entities
		WHERE user_id = ? AND entity_type = ? AND entity_id = ? AND instance_id = ?`,
		userID, string(ref.Type), ref.ID, ref.InstanceID,
	)
	if err != nil {
		return fmt.Errorf("delete hidden entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && s.logger != nil {
		s.logger.Debug("delete matched no hidden-entity row",
			"user_id", userID,
			"entity_type", ref.Type,
			"entity_id", ref.ID,
		)
	}
	return nil
}

// ListHiddenEntities returns all hidden-entity facts for a user.
func (s *Store) ListHiddenEntities(ctx context.Context, userID string) ([]*domain.HiddenEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, entity_type, entity_id, instance_id, created_at
		FROM user_hidden_entities
		WHERE user_id = ?
		ORDER BY entity_type, entity_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query hidden entities: %w", err)
	}
	defer rows.Close()

	var hidden []*domain.HiddenEntity
	for rows.Next() {
		var (
			h         domain.HiddenEntity
			typ       string
			createdAt string
		)
		if err := rows.Scan(&h.UserID, &typ, &h.EntityID, &h.InstanceID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan hidden entity: %w", err)
		}
		h.EntityType = domain.EntityType(typ)
		if h.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		hidden = append(hidden, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return hidden, nil
}

// UpsertContentRestriction creates or replaces the restriction for one
// (user, type, instance) key.
func (s *Store) UpsertContentRestriction(ctx context.Context, restriction *domain.ContentRestriction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_content_restrictions (user_id, entity_type, instance_id, mode, entity_ids, depth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entity_type, instance_id) DO UPDATE SET
			mode = excluded.mode,
			entity_ids = excluded.entity_ids,
			depth = excluded.depth,
			updated_at = excluded.updated_at`,
		restriction.UserID, string(restriction.EntityType), restriction.InstanceID,
		string(restriction.Mode), restriction.EntityIDs, restriction.Depth,
		timeToDB(restriction.CreatedAt), timeToDB(restriction.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert content restriction: %w", err)
	}
	return nil
}

// GetContentRestriction returns the restriction for one (user, type,
// instance) key.
func (s *Store) GetContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) (*domain.ContentRestriction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, entity_type, instance_id, mode, entity_ids, depth, created_at, updated_at
		FROM user_content_restrictions
		WHERE user_id = ? AND entity_type = ? AND instance_id = ?`,
		userID, string(t), instanceID)

	restriction, err := scanRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("content restriction not found")
	}
	return restriction, err
}

// DeleteContentRestriction removes the restriction for one (user, type,
// instance) key.
func (s *Store) DeleteContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_content_restrictions
		WHERE user_id = ? AND entity_type = ? AND instance_id = ?`,
		userID, string(t), instanceID,
	)
	if err != nil {
		return fmt.Errorf("delete content restriction: %w", err)
	}
	return nil
}

// ListContentRestrictions returns all restrictions for a user.
func (s *Store) ListContentRestrictions(ctx context.Context, userID string) ([]*domain.ContentRestriction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, entity_type, instance_id, mode, entity_ids, depth, created_at, updated_at
		FROM user_content_restrictions
		WHERE user_id = ?
		ORDER BY entity_type, instance_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query content restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []*domain.ContentRestriction
	for rows.Next() {
		restriction, err := scanRestriction(rows)
		if err != nil {
			return nil, err
		}
		restrictions = append(restrictions, restriction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return restrictions, nil
}

func scanRestriction(row rowScanner) (*domain.ContentRestriction, error) {
	var (
		r                  domain.ContentRestriction
		typ, mode          string
		createdAt, updated string
	)
	if err := row.Scan(&r.UserID, &typ, &r.InstanceID, &mode, &r.EntityIDs, &r.Depth, &createdAt, &updated); err != nil {
		return nil, err
	}
	r.EntityType = domain.EntityType(typ)
	r.Mode = domain.RestrictionMode(mode)

	var err error
	if r.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = timeFromDB(updated); err != nil {
		return nil, err
	}
	return &r, nil
}
