package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/nexcard/nexcard/internal/database/testutil"
	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/internal/services"
)

func TestCleanupCacheEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	expired := models.CacheEntry{Key: "ratelimit:stale", Value: []byte("3"), ExpiresAt: now.Add(-time.Hour)}
	active := models.CacheEntry{Key: "ratelimit:live", Value: []byte("1"), ExpiresAt: now.Add(time.Hour)}
	persistent := models.CacheEntry{Key: "pinned", Value: []byte("x")}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&persistent).Error)

	removed, err := CleanupCacheEntries(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Order("key").Pluck("key", &keys).Error)
	require.Equal(t, []string{"pinned", "ratelimit:live"}, keys)
}

func TestCleanerRunOnceSweeps(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	user := models.User{Username: "owner", Email: "owner@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	code := models.ConnectionCode{
		Code:        "expiredcode",
		OwnerUserID: user.ID,
		IsActive:    true,
		ExpiresAt:   now.Add(-time.Hour),
	}
	require.NoError(t, db.Create(&code).Error)

	sweep, err := services.NewSweepService(db, services.WithSweepClock(clock))
	require.NoError(t, err)

	cleaner := NewCleaner(db, sweep, WithNow(clock))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var stored models.ConnectionCode
	require.NoError(t, db.First(&stored, "code = ?", "expiredcode").Error)
	require.False(t, stored.IsActive)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	sweep, err := services.NewSweepService(db)
	require.NoError(t, err)

	cleaner := NewCleaner(db, sweep,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
		WithSchedule("@every 1h"),
	)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
