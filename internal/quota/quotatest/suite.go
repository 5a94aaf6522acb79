// Package quotatest holds behaviour checks shared by every quota.CounterStore.
package quotatest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCounterStoreSuite exercises store through its public contract. Each
// subtest uses a fresh user id, so one store may serve all of them.
func RunCounterStoreSuite(t *testing.T, store quota.CounterStore) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)

	seed := func(t *testing.T, tier models.Tier, used, limit int64, reset time.Time) string {
		userID := "user-" + uuid.NewString()
		require.NoError(t, store.Ensure(context.Background(), models.UsageCounter{
			UserID:     userID,
			Tier:       models.TierFree,
			UsageLimit: limit,
			ResetDate:  reset,
		}))
		if used > 0 {
			_, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
				UserID: userID, Count: used, Now: reset.Add(-time.Minute),
			})
			require.NoError(t, err)
			require.True(t, ok)
		}
		if tier != models.TierFree {
			_, err := store.SetTier(context.Background(), userID, tier, limit)
			require.NoError(t, err)
		}
		return userID
	}

	t.Run("missing counter", func(t *testing.T) {
		_, err := store.Get(context.Background(), "user-"+uuid.NewString())
		assert.ErrorIs(t, err, quota.ErrCounterNotFound)
	})

	t.Run("ensure keeps existing row", func(t *testing.T) {
		userID := seed(t, models.TierFree, 4, 10, quota.NextReset(now))
		require.NoError(t, store.Ensure(context.Background(), models.UsageCounter{
			UserID: userID, Tier: models.TierFree, UsageLimit: 10, ResetDate: quota.NextReset(now),
		}))

		c, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), c.Used)
	})

	t.Run("creates from defaults", func(t *testing.T) {
		userID := "user-" + uuid.NewString()
		c, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
			UserID: userID,
			Count:  1,
			Now:    now,
			Defaults: models.UsageCounter{
				UserID: userID, Tier: models.TierFree, UsageLimit: 10, ResetDate: quota.NextReset(now),
			},
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), c.Used)
	})

	t.Run("no overshoot under concurrency", func(t *testing.T) {
		userID := seed(t, models.TierFree, 8, 10, quota.NextReset(now))

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted, rejected := 0, 0
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
					UserID: userID, Count: 1, Now: now,
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil && ok {
					admitted++
				} else {
					rejected++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 2, admitted)
		assert.Equal(t, 3, rejected)

		c, err := store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), c.Used)
	})

	t.Run("rejection leaves counter untouched", func(t *testing.T) {
		userID := seed(t, models.TierFree, 9, 10, quota.NextReset(now))

		c, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
			UserID: userID, Count: 2, Now: now,
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(9), c.Used)
	})

	t.Run("rollover before evaluation", func(t *testing.T) {
		userID := seed(t, models.TierFree, 10, 10, now.Add(-time.Hour))

		c, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
			UserID: userID, Count: 1, Now: now,
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), c.Used)
		assert.True(t, c.ResetDate.After(now))
		assert.True(t, c.ResetDate.Equal(quota.NextReset(now)))
	})

	t.Run("pro is unbounded", func(t *testing.T) {
		userID := seed(t, models.TierPro, 0, quota.UnlimitedSentinel, quota.NextReset(now))

		for i := 0; i < 200; i++ {
			_, ok, err := store.CheckAndIncrement(context.Background(), quota.CheckRequest{
				UserID: userID, Count: 1, Now: now,
			})
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
}
