package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/database/testutil"
	"github.com/nexcard/nexcard/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t)
}

type profileOverride func(*models.Profile)

func createOwner(t *testing.T, db *gorm.DB, username string, overrides ...profileOverride) *models.User {
	t.Helper()

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "x",
		FirstName: "Test",
		LastName:  "Owner",
	}
	require.NoError(t, db.Create(user).Error)

	profile := &models.Profile{
		UserID:        user.ID,
		Bio:           "Building developer tools",
		Company:       "Acme",
		JobTitle:      "Engineer",
		Interests:     datatypes.NewJSONSlice([]string{"go", "networking"}),
		SocialLinks:   datatypes.NewJSONType(map[string]string{"linkedin": "https://linkedin.com/in/" + username}),
		PublicEnabled: true,
		AllowBio:      true,
		AllowCompany:  true,
		AllowJobTitle: true,
	}
	for _, override := range overrides {
		override(profile)
	}
	require.NoError(t, db.Create(profile).Error)

	return user
}

func testClock(at time.Time) (func() time.Time, func(time.Time)) {
	current := at
	clock := func() time.Time { return current }
	advanceTo := func(next time.Time) { current = next }
	return clock, advanceTo
}
