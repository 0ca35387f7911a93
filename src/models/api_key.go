package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents an API key issued from the dashboard
type APIKey struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Name        string      `json:"name"`
	Value       string      `json:"value"`
	Environment Environment `json:"environment"`
	UsageCount  int         `json:"usage_count"`
	UsageLimit  *int        `json:"usage_limit,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsed    *time.Time  `json:"last_used,omitempty"`
}

// EffectiveLimit returns the key's usage ceiling, falling back to the
// default when no explicit limit is set.
func (k *APIKey) EffectiveLimit() int {
	if k.UsageLimit != nil {
		return *k.UsageLimit
	}
	return DefaultUsageLimit
}
