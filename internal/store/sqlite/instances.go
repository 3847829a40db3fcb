package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// CreateInstance registers an upstream library source.
func (s *Store) CreateInstance(ctx context.Context, instance *domain.Instance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, name, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		instance.ID, instance.Name, instance.SourceURL,
		timeToDB(instance.CreatedAt), timeToDB(instance.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// GetInstance returns an instance by ID.
func (s *Store) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_url, created_at, updated_at
		FROM instances WHERE id = ?`, id)

	instance, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("instance not found")
	}
	return instance, err
}

// ListInstances returns all registered instances ordered by ID.
func (s *Store) ListInstances(ctx context.Context) ([]*domain.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_url, created_at, updated_at
		FROM instances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var instances []*domain.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return instances, nil
}

func scanInstance(row rowScanner) (*domain.Instance, error) {
	var (
		instance           domain.Instance
		createdAt, updated string
	)
	if err := row.Scan(&instance.ID, &instance.Name, &instance.SourceURL, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if instance.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return nil, err
	}
	if instance.UpdatedAt, err = timeFromDB(updated); err != nil {
		return nil, err
	}
	return &instance, nil
}
