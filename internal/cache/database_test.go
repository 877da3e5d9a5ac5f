package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexcard/nexcard/internal/database/testutil"
	"github.com/nexcard/nexcard/internal/models"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "greeting", []byte("hello"), time.Minute))

	value, found, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), value)

	// Upsert replaces the value in place.
	require.NoError(t, store.Set(ctx, "greeting", []byte("hei"), time.Minute))
	value, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hei"), value)

	require.NoError(t, store.Delete(ctx, "greeting"))
	_, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetExpiredEntry(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	entry := models.CacheEntry{
		Key:       "stale",
		Value:     []byte("old"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(&entry).Error)

	_, found, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, found)

	// The lazy delete removed the row.
	var count int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Where("key = ?", "stale").Count(&count).Error)
	require.Zero(t, count)
}

func TestDatabaseStoreZeroTTLPersists(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pinned", []byte("keep"), 0))

	value, found, err := store.Get(ctx, "pinned")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("keep"), value)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rate:ip", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "rate:ip", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Separate keys keep separate counters.
	count, _, err = store.IncrementWithTTL(ctx, "rate:other", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreIncrementResetsAfterWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, _, err := store.IncrementWithTTL(ctx, "rate:reset", time.Minute)
	require.NoError(t, err)

	// Age the counter past its window.
	require.NoError(t, db.Model(&models.CacheEntry{}).
		Where("key = ?", "rate:reset").
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	count, _, err := store.IncrementWithTTL(ctx, "rate:reset", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
