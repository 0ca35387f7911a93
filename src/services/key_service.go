package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repolens/repolens/src/models"
)

const apiKeyColumns = "id, user_id, name, value, environment, usage_count, usage_limit, created_at, last_used"

// KeyService handles API key persistence and issuance
type KeyService struct {
	pool *pgxpool.Pool
}

// NewKeyService creates a new key service
func NewKeyService(pool *pgxpool.Pool) *KeyService {
	return &KeyService{pool: pool}
}

// scanKey scans one api_keys row in apiKeyColumns order
func scanKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Value, &k.Environment,
		&k.UsageCount, &k.UsageLimit, &k.CreatedAt, &k.LastUsed)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// FindByValue looks up a key by its exact value.
// Returns ErrKeyNotFound when no row matches.
func (ks *KeyService) FindByValue(ctx context.Context, value string) (*models.APIKey, error) {
	key, err := scanKey(ks.pool.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE value = $1", value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to query key by value: %w", err)
	}
	return key, nil
}

// FindByIDAndOwner fetches a key by id, scoped to its owner.
// A key that exists but belongs to another user is reported as not found.
func (ks *KeyService) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	key, err := scanKey(ks.pool.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE id = $1 AND user_id = $2", id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to query key by id: %w", err)
	}
	return key, nil
}

// ListByOwner returns all keys belonging to a user, newest first
func (ks *KeyService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
	rows, err := ks.pool.Query(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.Value, &k.Environment,
			&k.UsageCount, &k.UsageLimit, &k.CreatedAt, &k.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}

	return keys, nil
}

// Insert stores a fully populated key row
func (ks *KeyService) Insert(ctx context.Context, key *models.APIKey) error {
	err := ks.pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, user_id, name, value, environment, usage_count, usage_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, key.ID, key.UserID, key.Name, key.Value, key.Environment, key.UsageCount, key.UsageLimit).Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert key: %w", err)
	}
	return nil
}

// CreateKey issues a new key for a user. The value is generated server-side
// and, together with the environment, is immutable afterwards.
func (ks *KeyService) CreateKey(ctx context.Context, ownerID uuid.UUID, name string, env models.Environment, usageLimit *int) (*models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("key name is required")
	}
	if env == "" {
		env = models.EnvDevelopment
	}
	if !env.IsValid() {
		return nil, ErrInvalidEnvironment
	}
	if usageLimit != nil && *usageLimit <= 0 {
		return nil, fmt.Errorf("usage limit must be positive")
	}

	value, err := generateKeyValue(env)
	if err != nil {
		return nil, err
	}

	key := &models.APIKey{
		ID:          uuid.New(),
		UserID:      ownerID,
		Name:        name,
		Value:       value,
		Environment: env,
		UsageCount:  0,
		UsageLimit:  usageLimit,
	}

	if err := ks.Insert(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

// Rename updates a key's display name. Value, environment and created_at are
// never touched. Returns ErrKeyNotFound when the key does not exist or
// belongs to another user.
func (ks *KeyService) Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("key name is required")
	}

	key, err := scanKey(ks.pool.QueryRow(ctx, `
		UPDATE api_keys SET name = $3
		WHERE id = $1 AND user_id = $2
		RETURNING `+apiKeyColumns,
		id, ownerID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to rename key: %w", err)
	}
	return key, nil
}

// Delete removes a key permanently (hard delete, no tombstone)
func (ks *KeyService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	result, err := ks.pool.Exec(ctx,
		"DELETE FROM api_keys WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// RecordUsage increments usage_count and stamps last_used in a single
// statement evaluated by Postgres, so concurrent calls on the same key
// cannot lose updates. Returns the post-increment count.
func (ks *KeyService) RecordUsage(ctx context.Context, id uuid.UUID) (int, time.Time, error) {
	var usage int
	var lastUsed time.Time
	err := ks.pool.QueryRow(ctx, `
		UPDATE api_keys
		SET usage_count = usage_count + 1, last_used = NOW()
		WHERE id = $1
		RETURNING usage_count, last_used
	`, id).Scan(&usage, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, ErrKeyNotFound
		}
		return 0, time.Time{}, fmt.Errorf("failed to record key usage: %w", err)
	}
	return usage, lastUsed, nil
}

// generateKeyValue generates a random key value with the environment's prefix
func generateKeyValue(env models.Environment) (string, error) {
	prefix := models.KeyPrefixDevelopment
	if env == models.EnvProduction {
		prefix = models.KeyPrefixProduction
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return prefix + hex.EncodeToString(keyBytes), nil
}
