package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexcard/nexcard/internal/models"
)

func TestScanRecorderPersistsEventAndRollups(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "nina")

	codes, err := NewCodeService(db)
	require.NoError(t, err)
	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	at := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	clock, _ := testClock(at)

	recorder, err := NewScanRecorder(db, WithScanClock(clock))
	require.NoError(t, err)

	recorder.Record(ScanInput{
		Code:       issued.Code,
		DeviceInfo: "Mozilla/5.0",
		Location:   "Berlin, DE",
		Referrer:   "https://example.com",
		SessionID:  "sess-1",
	})
	recorder.Record(ScanInput{Code: issued.Code, SessionID: "sess-2"})
	recorder.Close()

	var events []models.ScanEvent
	require.NoError(t, db.Where("code = ?", issued.Code).Find(&events).Error)
	require.Len(t, events, 2)

	var record models.ConnectionCode
	require.NoError(t, db.First(&record, "code = ?", issued.Code).Error)
	require.EqualValues(t, 2, record.ScanCount)
	require.NotNil(t, record.LastScannedAt)
	require.Equal(t, at, record.LastScannedAt.UTC())
	// The second event carried no location, so the rollup keeps the previous one.
	require.Equal(t, "Berlin, DE", record.LastScanLocation)
}

func TestScanRecorderIgnoresEmptyCode(t *testing.T) {
	db := openTestDB(t)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)

	recorder.Record(ScanInput{Code: "   "})
	recorder.Close()

	var count int64
	require.NoError(t, db.Model(&models.ScanEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestResolveUnaffectedByScanStorageFailure(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "omar")

	codes, err := NewCodeService(db)
	require.NoError(t, err)
	resolver, err := NewResolverService(db, codes)
	require.NoError(t, err)
	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)

	// Break the telemetry write path; the resolve path must not notice.
	require.NoError(t, db.Migrator().DropTable(&models.ScanEvent{}))

	recorder.Record(ScanInput{Code: issued.Code, Location: "Oslo, NO"})
	recorder.Close()

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)
	require.NotNil(t, view)

	// The failed write also leaves the rollups untouched.
	var record models.ConnectionCode
	require.NoError(t, db.First(&record, "code = ?", issued.Code).Error)
	require.Zero(t, record.ScanCount)
	require.Nil(t, record.LastScannedAt)
}

func TestScanRecorderDropsWhenQueueFull(t *testing.T) {
	db := openTestDB(t)

	// Block the worker inside its first persist so the queue stays occupied
	// long enough to observe the overflow branch deterministically.
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	clock := func() time.Time {
		once.Do(func() {
			close(entered)
			<-gate
		})
		return time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	}

	recorder, err := NewScanRecorder(db, WithScanClock(clock), WithScanQueueSize(1))
	require.NoError(t, err)

	recorder.Record(ScanInput{Code: "first"})
	<-entered // worker is now stuck persisting "first"; the buffer is empty

	recorder.Record(ScanInput{Code: "second"}) // fills the buffer
	recorder.Record(ScanInput{Code: "third"})  // overflow, dropped

	close(gate)
	recorder.Close()

	var count int64
	require.NoError(t, db.Model(&models.ScanEvent{}).Count(&count).Error)
	require.EqualValues(t, 2, count)

	require.NoError(t, db.Model(&models.ScanEvent{}).Where("code = ?", "third").Count(&count).Error)
	require.Zero(t, count)
}

func TestRecordAfterCloseDropsEvent(t *testing.T) {
	db := openTestDB(t)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)
	recorder.Close()

	require.NotPanics(t, func() {
		recorder.Record(ScanInput{Code: "late"})
	})
	recorder.Close() // repeated close stays a no-op

	var count int64
	require.NoError(t, db.Model(&models.ScanEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestScanRecorderUnknownCodeStillStoresEvent(t *testing.T) {
	db := openTestDB(t)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)

	recorder.Record(ScanInput{Code: "ghostcode"})
	recorder.Close()

	// The event row lands even when no code row is present to roll up into.
	var count int64
	require.NoError(t, db.Model(&models.ScanEvent{}).Where("code = ?", "ghostcode").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestScanStatsAggregatesAcrossCodes(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "oscar")
	other := createOwner(t, db, "peggy")

	codes, err := NewCodeService(db)
	require.NoError(t, err)

	first, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)
	second, err := codes.Rotate(context.Background(), owner.ID)
	require.NoError(t, err)
	theirs, err := codes.IssueOrRefresh(context.Background(), other.ID)
	require.NoError(t, err)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)

	recorder.Record(ScanInput{Code: first.Code, SessionID: "s1"})
	recorder.Record(ScanInput{Code: second.Code, SessionID: "s2"})
	recorder.Record(ScanInput{Code: second.Code, SessionID: "s3"})
	recorder.Record(ScanInput{Code: theirs.Code, SessionID: "s4"})
	recorder.Close()

	stats, err := recorder.Stats(context.Background(), owner.ID, 10)
	require.NoError(t, err)
	// Rotated-away codes still count toward the owner's history.
	require.EqualValues(t, 3, stats.TotalScans)
	require.Len(t, stats.RecentScans, 3)
	require.NotNil(t, stats.LastScanAt)

	otherStats, err := recorder.Stats(context.Background(), other.ID, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, otherStats.TotalScans)
}

func TestScanStatsRecentLimit(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "quinn")

	codes, err := NewCodeService(db)
	require.NoError(t, err)
	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		recorder.Record(ScanInput{Code: issued.Code, SessionID: fmt.Sprintf("s%d", i)})
	}
	recorder.Close()

	stats, err := recorder.Stats(context.Background(), owner.ID, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, stats.TotalScans)
	require.Len(t, stats.RecentScans, 2)
}

func TestScanStatsNoCodes(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "rita")

	recorder, err := NewScanRecorder(db)
	require.NoError(t, err)
	defer recorder.Close()

	stats, err := recorder.Stats(context.Background(), owner.ID, 10)
	require.NoError(t, err)
	require.Zero(t, stats.TotalScans)
	require.Empty(t, stats.RecentScans)
	require.Nil(t, stats.LastScanAt)
}
