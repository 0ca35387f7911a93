package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/services"
)

// UserRepository is an in-memory implementation of repositories.UserRepository
type UserRepository struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*models.User
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		Users: make(map[uuid.UUID]*models.User),
	}
}

func (m *UserRepository) GetOrCreateByEmail(ctx context.Context, email, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			u.Name = name
			copied := *u
			return &copied, nil
		}
	}
	u := &models.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}
	m.Users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}
