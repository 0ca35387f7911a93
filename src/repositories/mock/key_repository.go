package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/services"
)

// KeyRepository is an in-memory implementation of repositories.KeyRepository
// for tests. Default behavior operates on the Keys map; individual methods
// can be overridden through the function stubs. The usage increment is
// serialized by a mutex so concurrency tests observe real atomic semantics.
type KeyRepository struct {
	mu   sync.Mutex
	Keys map[uuid.UUID]*models.APIKey

	// Function stubs that can be overridden in tests
	FindByValueFunc func(ctx context.Context, value string) (*models.APIKey, error)
	RecordUsageFunc func(ctx context.Context, id uuid.UUID) (int, time.Time, error)

	// Call tracking
	Calls map[string]int
}

// NewKeyRepository creates a new in-memory key repository
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{
		Keys:  make(map[uuid.UUID]*models.APIKey),
		Calls: make(map[string]int),
	}
}

// Add stores a copy of the key and returns it
func (m *KeyRepository) Add(key models.APIKey) *models.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := key
	m.Keys[key.ID] = &stored
	return &stored
}

func (m *KeyRepository) track(method string) {
	m.Calls[method]++
}

func (m *KeyRepository) FindByValue(ctx context.Context, value string) (*models.APIKey, error) {
	m.mu.Lock()
	m.track("FindByValue")
	m.mu.Unlock()
	if m.FindByValueFunc != nil {
		return m.FindByValueFunc(ctx, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.Keys {
		if k.Value == value {
			copied := *k
			return &copied, nil
		}
	}
	return nil, services.ErrKeyNotFound
}

func (m *KeyRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("FindByIDAndOwner")
	k, ok := m.Keys[id]
	if !ok || k.UserID != ownerID {
		return nil, services.ErrKeyNotFound
	}
	copied := *k
	return &copied, nil
}

func (m *KeyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("ListByOwner")
	var keys []models.APIKey
	for _, k := range m.Keys {
		if k.UserID == ownerID {
			keys = append(keys, *k)
		}
	}
	return keys, nil
}

func (m *KeyRepository) Insert(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Insert")
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	stored := *key
	m.Keys[key.ID] = &stored
	return nil
}

func (m *KeyRepository) Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Rename")
	k, ok := m.Keys[id]
	if !ok || k.UserID != ownerID {
		return nil, services.ErrKeyNotFound
	}
	k.Name = name
	copied := *k
	return &copied, nil
}

func (m *KeyRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Delete")
	k, ok := m.Keys[id]
	if !ok || k.UserID != ownerID {
		return services.ErrKeyNotFound
	}
	delete(m.Keys, id)
	return nil
}

// CreateKey issues a key the way the real key service does, with a
// deterministic-enough generated value for tests
func (m *KeyRepository) CreateKey(ctx context.Context, ownerID uuid.UUID, name string, env models.Environment, usageLimit *int) (*models.APIKey, error) {
	if name == "" {
		return nil, fmt.Errorf("key name is required")
	}
	if env == "" {
		env = models.EnvDevelopment
	}
	if !env.IsValid() {
		return nil, services.ErrInvalidEnvironment
	}

	prefix := models.KeyPrefixDevelopment
	if env == models.EnvProduction {
		prefix = models.KeyPrefixProduction
	}

	key := &models.APIKey{
		ID:          uuid.New(),
		UserID:      ownerID,
		Name:        name,
		Value:       prefix + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Environment: env,
		UsageLimit:  usageLimit,
		CreatedAt:   time.Now(),
	}
	if err := m.Insert(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (m *KeyRepository) RecordUsage(ctx context.Context, id uuid.UUID) (int, time.Time, error) {
	if m.RecordUsageFunc != nil {
		return m.RecordUsageFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("RecordUsage")
	k, ok := m.Keys[id]
	if !ok {
		return 0, time.Time{}, services.ErrKeyNotFound
	}
	k.UsageCount++
	now := time.Now()
	k.LastUsed = &now
	return k.UsageCount, now, nil
}
