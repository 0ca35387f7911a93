package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/repositories"
)

// KeyGuard authorizes requests that present a bearer API key instead of a
// session. It is stateless: every call is a lookup plus one atomic usage
// increment against the key store, with no in-memory counters or windows.
type KeyGuard struct {
	keys repositories.KeyRepository
}

// NewKeyGuard creates a new key guard
func NewKeyGuard(keys repositories.KeyRepository) *KeyGuard {
	return &KeyGuard{keys: keys}
}

// Authorization is the outcome of a successful Authorize call
type Authorization struct {
	Key   *models.APIKey
	Usage int
	Limit int
}

// Remaining reports how many authorized calls the key has left
func (a *Authorization) Remaining() int {
	if a.Usage >= a.Limit {
		return 0
	}
	return a.Limit - a.Usage
}

// Authorize decides whether a request presenting the given secret may
// proceed, and accounts for the usage. Failure modes:
//
//   - ErrMissingKey: no secret supplied
//   - ErrKeyNotFound: no key matches the secret (exact match only)
//   - *RateLimitError: the post-increment usage crossed the key's ceiling;
//     the increment still landed, the refused call counts against usage
//   - anything else: a storage fault, to be surfaced as a server error
//
// The increment always happens before the limit comparison, so usage is
// never undercounted even for refused calls.
func (g *KeyGuard) Authorize(ctx context.Context, secret string) (*Authorization, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}

	key, err := g.keys.FindByValue(ctx, secret)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("key lookup failed: %w", err)
	}

	usage, lastUsed, err := g.keys.RecordUsage(ctx, key.ID)
	if err != nil {
		// Usage accounting may now be inconsistent; this is a server fault,
		// not a business-rule rejection.
		return nil, fmt.Errorf("usage accounting failed: %w", err)
	}
	key.UsageCount = usage
	key.LastUsed = &lastUsed

	limit := key.EffectiveLimit()
	if usage > limit {
		return nil, &RateLimitError{Usage: usage, Limit: limit}
	}

	return &Authorization{Key: key, Usage: usage, Limit: limit}, nil
}

// CheckKey reports whether a secret matches an issued key, without touching
// usage accounting. Used by the key playground's validate endpoint.
func (g *KeyGuard) CheckKey(ctx context.Context, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingKey
	}

	_, err := g.keys.FindByValue(ctx, secret)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("key lookup failed: %w", err)
	}
	return true, nil
}
