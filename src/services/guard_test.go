package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/repositories/mock"
	"github.com/repolens/repolens/src/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardWithKey(limit *int) (*services.KeyGuard, *mock.KeyRepository, *models.APIKey) {
	repo := mock.NewKeyRepository()
	key := repo.Add(models.APIKey{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "test key",
		Value:       "rl_dev_abc123",
		Environment: models.EnvDevelopment,
		UsageLimit:  limit,
		CreatedAt:   time.Now(),
	})
	return services.NewKeyGuard(repo), repo, key
}

func intPtr(v int) *int { return &v }

func TestAuthorize_MissingKey(t *testing.T) {
	guard, repo, _ := newGuardWithKey(nil)

	auth, err := guard.Authorize(context.Background(), "")

	assert.Nil(t, auth)
	assert.ErrorIs(t, err, services.ErrMissingKey)
	assert.Zero(t, repo.Calls["FindByValue"], "empty secret must not hit the store")
}

func TestAuthorize_UnknownKey(t *testing.T) {
	guard, repo, _ := newGuardWithKey(nil)

	auth, err := guard.Authorize(context.Background(), "rl_dev_doesnotexist")

	assert.Nil(t, auth)
	assert.ErrorIs(t, err, services.ErrKeyNotFound)
	assert.Zero(t, repo.Calls["RecordUsage"], "unknown key must not be charged usage")
}

func TestAuthorize_Success(t *testing.T) {
	guard, _, key := newGuardWithKey(intPtr(5))

	auth, err := guard.Authorize(context.Background(), key.Value)

	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, 1, auth.Usage)
	assert.Equal(t, 5, auth.Limit)
	assert.Equal(t, 4, auth.Remaining())
	assert.Equal(t, key.ID, auth.Key.ID)
	require.NotNil(t, auth.Key.LastUsed)
}

func TestAuthorize_EveryCallIncrements(t *testing.T) {
	guard, repo, key := newGuardWithKey(intPtr(10))

	for i := 1; i <= 3; i++ {
		auth, err := guard.Authorize(context.Background(), key.Value)
		require.NoError(t, err)
		assert.Equal(t, i, auth.Usage)
	}

	assert.Equal(t, 3, repo.Keys[key.ID].UsageCount)
}

func TestAuthorize_RefusedCallStillCounts(t *testing.T) {
	guard, repo, key := newGuardWithKey(intPtr(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.Authorize(ctx, key.Value)
		require.NoError(t, err)
	}

	// Fourth call crosses the ceiling
	auth, err := guard.Authorize(ctx, key.Value)
	assert.Nil(t, auth)

	var rateErr *services.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 4, rateErr.Usage)
	assert.Equal(t, 3, rateErr.Limit)
	assert.Equal(t, 0, rateErr.Remaining())

	// The refusal itself was charged
	assert.Equal(t, 4, repo.Keys[key.ID].UsageCount)

	// And so is the next refusal
	_, err = guard.Authorize(ctx, key.Value)
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 5, rateErr.Usage)
}

func TestAuthorize_ExactLimitIsAllowed(t *testing.T) {
	guard, _, key := newGuardWithKey(intPtr(2))
	ctx := context.Background()

	auth, err := guard.Authorize(ctx, key.Value)
	require.NoError(t, err)
	assert.Equal(t, 1, auth.Remaining())

	// Usage equal to the limit still passes, with zero headroom left
	auth, err = guard.Authorize(ctx, key.Value)
	require.NoError(t, err)
	assert.Equal(t, 2, auth.Usage)
	assert.Equal(t, 0, auth.Remaining())

	_, err = guard.Authorize(ctx, key.Value)
	var rateErr *services.RateLimitError
	require.ErrorAs(t, err, &rateErr)
}

func TestAuthorize_DefaultLimit(t *testing.T) {
	guard, repo, key := newGuardWithKey(nil)
	repo.Keys[key.ID].UsageCount = models.DefaultUsageLimit - 1

	auth, err := guard.Authorize(context.Background(), key.Value)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUsageLimit, auth.Usage)
	assert.Equal(t, models.DefaultUsageLimit, auth.Limit)
	assert.Equal(t, 0, auth.Remaining())

	_, err = guard.Authorize(context.Background(), key.Value)
	var rateErr *services.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, models.DefaultUsageLimit+1, rateErr.Usage)
	assert.Equal(t, models.DefaultUsageLimit, rateErr.Limit)
}

func TestAuthorize_LookupFault(t *testing.T) {
	repo := mock.NewKeyRepository()
	repo.FindByValueFunc = func(ctx context.Context, value string) (*models.APIKey, error) {
		return nil, errors.New("connection refused")
	}
	guard := services.NewKeyGuard(repo)

	auth, err := guard.Authorize(context.Background(), "rl_dev_abc123")

	assert.Nil(t, auth)
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrKeyNotFound)
	var rateErr *services.RateLimitError
	assert.False(t, errors.As(err, &rateErr))
}

func TestAuthorize_UsageAccountingFault(t *testing.T) {
	guard, repo, key := newGuardWithKey(nil)
	repo.RecordUsageFunc = func(ctx context.Context, id uuid.UUID) (int, time.Time, error) {
		return 0, time.Time{}, fmt.Errorf("write failed")
	}

	auth, err := guard.Authorize(context.Background(), key.Value)

	assert.Nil(t, auth)
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrKeyNotFound)
}

// Concurrent callers must never observe the same usage value twice and the
// stored count must equal the number of calls, charged or refused.
func TestAuthorize_ConcurrentUsageAccounting(t *testing.T) {
	const callers = 100
	const limit = 40

	guard, repo, key := newGuardWithKey(intPtr(limit))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		allowed  int
		refused  int
		observed = make(map[int]bool)
	)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()

			auth, err := guard.Authorize(context.Background(), key.Value)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				allowed++
				if observed[auth.Usage] {
					t.Errorf("usage value %d observed twice", auth.Usage)
				}
				observed[auth.Usage] = true
			default:
				var rateErr *services.RateLimitError
				if !errors.As(err, &rateErr) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				refused++
				if observed[rateErr.Usage] {
					t.Errorf("usage value %d observed twice", rateErr.Usage)
				}
				observed[rateErr.Usage] = true
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed)
	assert.Equal(t, callers-limit, refused)
	assert.Equal(t, callers, repo.Keys[key.ID].UsageCount, "every call must be charged exactly once")
}

func TestCheckKey_Valid(t *testing.T) {
	guard, repo, key := newGuardWithKey(nil)

	valid, err := guard.CheckKey(context.Background(), key.Value)

	require.NoError(t, err)
	assert.True(t, valid)
	assert.Zero(t, repo.Calls["RecordUsage"], "validation must not charge usage")
}

func TestCheckKey_Unknown(t *testing.T) {
	guard, _, _ := newGuardWithKey(nil)

	valid, err := guard.CheckKey(context.Background(), "rl_prod_nope")

	require.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckKey_Missing(t *testing.T) {
	guard, _, _ := newGuardWithKey(nil)

	_, err := guard.CheckKey(context.Background(), "")

	assert.ErrorIs(t, err, services.ErrMissingKey)
}

func TestCheckKey_LookupFault(t *testing.T) {
	repo := mock.NewKeyRepository()
	repo.FindByValueFunc = func(ctx context.Context, value string) (*models.APIKey, error) {
		return nil, errors.New("connection refused")
	}
	guard := services.NewKeyGuard(repo)

	valid, err := guard.CheckKey(context.Background(), "rl_dev_abc123")

	assert.False(t, valid)
	require.Error(t, err)
}
