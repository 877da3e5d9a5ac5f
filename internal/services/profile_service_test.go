package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestProfileGet(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "rose")

	profiles, err := NewProfileService(db)
	require.NoError(t, err)

	profile, err := profiles.Get(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Equal(t, "Building developer tools", profile.Bio)

	_, err = profiles.Get(context.Background(), "missing-user")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUpdateVisibilityPartial(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "sara")

	profiles, err := NewProfileService(db)
	require.NoError(t, err)

	updated, err := profiles.UpdateVisibility(context.Background(), owner.ID, VisibilityInput{
		AllowBio:      boolPtr(false),
		PublicEnabled: boolPtr(false),
	})
	require.NoError(t, err)
	require.False(t, updated.AllowBio)
	require.False(t, updated.PublicEnabled)
	// Untouched flags keep their previous values.
	require.True(t, updated.AllowCompany)
	require.True(t, updated.AllowJobTitle)
}

func TestUpdateVisibilityNoChanges(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "tina")

	profiles, err := NewProfileService(db)
	require.NoError(t, err)

	updated, err := profiles.UpdateVisibility(context.Background(), owner.ID, VisibilityInput{})
	require.NoError(t, err)
	require.True(t, updated.PublicEnabled)
}

func TestVisibilityChangeAffectsResolution(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "ursula")

	profiles, err := NewProfileService(db)
	require.NoError(t, err)
	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)
	require.NotNil(t, view.Bio)

	_, err = profiles.UpdateVisibility(context.Background(), owner.ID, VisibilityInput{
		AllowBio: boolPtr(false),
	})
	require.NoError(t, err)

	view, err = resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)
	require.Nil(t, view.Bio)

	_, err = profiles.UpdateVisibility(context.Background(), owner.ID, VisibilityInput{
		PublicEnabled: boolPtr(false),
	})
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), issued.Code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}
