package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/store"
)

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, timeToDB(user.CreatedAt), timeToDB(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("user not found")
	}
	return user, err
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user               domain.User
		createdAt, updated string
	)
	if err := row.Scan(&user.ID, &user.Name, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if user.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = timeFromDB(updated); err != nil {
		return nil, err
	}
	return &user, nil
}
