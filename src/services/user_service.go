package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repolens/repolens/src/models"
)

// UserService handles user persistence
type UserService struct {
	pool *pgxpool.Pool
}

// NewUserService creates a new user service
func NewUserService(pool *pgxpool.Pool) *UserService {
	return &UserService{pool: pool}
}

// GetOrCreateByEmail resolves a user by email, provisioning the row on first
// sign-in. The name is refreshed from the identity provider on every login.
func (us *UserService) GetOrCreateByEmail(ctx context.Context, email, name string) (*models.User, error) {
	var u models.User
	err := us.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, email, name, created_at
	`, uuid.New(), email, name).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &u, nil
}

// GetByID fetches a user by id
func (us *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := us.pool.QueryRow(ctx,
		"SELECT id, email, name, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}
