package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
)

// KeyRepository defines the interface for API key data access.
// Management operations are always scoped by owner; only FindByValue is
// owner-agnostic because it serves bearer-secret authorization.
type KeyRepository interface {
	// Authorization lookup (exact match on the full key value)
	FindByValue(ctx context.Context, value string) (*models.APIKey, error)

	// Owner-scoped reads
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error)

	// Mutations
	Insert(ctx context.Context, key *models.APIKey) error
	Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*models.APIKey, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error

	// RecordUsage atomically increments usage_count and stamps last_used,
	// returning the post-increment count. Single statement, no read-modify-write.
	RecordUsage(ctx context.Context, id uuid.UUID) (int, time.Time, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetOrCreateByEmail(ctx context.Context, email, name string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
