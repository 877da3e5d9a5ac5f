package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexcard/nexcard/internal/models"
)

func TestIssueOrRefreshIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "alice")

	svc, err := NewCodeService(db, WithCodeBaseURL("https://nexcard.example.com"))
	require.NoError(t, err)

	first, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first.Code)
	require.Equal(t, "https://nexcard.example.com/profile/"+first.Code, first.PublicURL)

	second, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)

	var active int64
	require.NoError(t, db.Model(&models.ConnectionCode{}).
		Where("owner_user_id = ? AND is_active = ?", owner.ID, true).
		Count(&active).Error)
	require.EqualValues(t, 1, active)
}

func TestIssueOrRefreshReplacesExpiredCode(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "bob")

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock, advanceTo := testClock(start)

	svc, err := NewCodeService(db, WithCodeClock(clock))
	require.NoError(t, err)

	first, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	advanceTo(start.Add(25 * time.Hour))

	second, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Code, second.Code)

	var active int64
	require.NoError(t, db.Model(&models.ConnectionCode{}).
		Where("owner_user_id = ? AND is_active = ?", owner.ID, true).
		Count(&active).Error)
	require.EqualValues(t, 1, active)
}

func TestRotateAlwaysMints(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "carol")

	svc, err := NewCodeService(db)
	require.NoError(t, err)

	first, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	rotated, err := svc.Rotate(context.Background(), owner.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Code, rotated.Code)

	var old models.ConnectionCode
	require.NoError(t, db.First(&old, "code = ?", first.Code).Error)
	require.False(t, old.IsActive)

	var active int64
	require.NoError(t, db.Model(&models.ConnectionCode{}).
		Where("owner_user_id = ? AND is_active = ?", owner.ID, true).
		Count(&active).Error)
	require.EqualValues(t, 1, active)
}

func TestIssueRequiresProfile(t *testing.T) {
	db := openTestDB(t)

	user := models.User{Username: "noprofile", Email: "noprofile@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	svc, err := NewCodeService(db)
	require.NoError(t, err)

	_, err = svc.IssueOrRefresh(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestDeactivateAndCurrent(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "dave")

	svc, err := NewCodeService(db)
	require.NoError(t, err)

	issued, err := svc.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	current, err := svc.Current(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Equal(t, issued.Code, current.Code)

	require.NoError(t, svc.Deactivate(context.Background(), owner.ID))

	_, err = svc.Current(context.Background(), owner.ID)
	require.ErrorIs(t, err, ErrCodeNotFound)
}
