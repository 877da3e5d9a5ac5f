package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
)

func newResolverFixture(t *testing.T, db *gorm.DB, opts ...ResolverOption) (*CodeService, *ResolverService) {
	t.Helper()

	codes, err := NewCodeService(db, WithCodeBaseURL("https://nexcard.example.com"))
	require.NoError(t, err)

	resolver, err := NewResolverService(db, codes, opts...)
	require.NoError(t, err)

	return codes, resolver
}

func TestResolveReturnsFilteredView(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "erin", func(p *models.Profile) {
		p.AllowInterests = true
		p.AllowSocialLinks = true
	})

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)

	require.Equal(t, "Test Owner", view.Name)
	require.NotNil(t, view.Bio)
	require.Equal(t, "Building developer tools", *view.Bio)
	require.NotNil(t, view.Company)
	require.NotNil(t, view.JobTitle)
	require.Equal(t, []string{"go", "networking"}, view.Interests)
	require.Contains(t, view.SocialLinks, "linkedin")
	require.Equal(t, issued.PublicURL, view.PublicURL)
}

func TestResolveOmitsDisallowedFields(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "frank", func(p *models.Profile) {
		p.AllowBio = false
		p.AllowCompany = false
	})

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)

	require.Nil(t, view.Bio)
	require.Nil(t, view.Company)
	require.NotNil(t, view.JobTitle)
	require.Nil(t, view.Interests)
	require.Nil(t, view.SocialLinks)
}

func TestResolveOmitsEmptyAllowedFields(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "grace", func(p *models.Profile) {
		p.Bio = ""
		p.AllowInterests = true
		p.Interests = datatypes.NewJSONSlice([]string(nil))
	})

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)

	require.Nil(t, view.Bio)
	require.Nil(t, view.Interests)
}

func TestResolveUnknownCode(t *testing.T) {
	db := openTestDB(t)
	_, resolver := newResolverFixture(t, db)

	_, err := resolver.Resolve(context.Background(), "nosuchcode")
	require.ErrorIs(t, err, ErrCodeNotFound)

	_, err = resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResolveExpiredCode(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "heidi")

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock, advanceTo := testClock(start)

	codes, err := NewCodeService(db, WithCodeClock(clock))
	require.NoError(t, err)
	resolver, err := NewResolverService(db, codes, WithResolverClock(clock))
	require.NoError(t, err)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.Resolve(context.Background(), issued.Code)
	require.NoError(t, err)
	require.NotNil(t, view)

	advanceTo(start.Add(25 * time.Hour))

	_, err = resolver.Resolve(context.Background(), issued.Code)
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestResolveDeactivatedCodeIsNotFound(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "ivan")

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)
	require.NoError(t, codes.Deactivate(context.Background(), owner.ID))

	// A retired code must be indistinguishable from one that never existed.
	_, err = resolver.Resolve(context.Background(), issued.Code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResolveRespectsPublicEnabled(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "judy", func(p *models.Profile) {
		p.PublicEnabled = false
	})

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), issued.Code)
	require.ErrorIs(t, err, ErrCodeNotFound)

	_, err = resolver.ResolveOwner(context.Background(), issued.Code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResolveOwner(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "kate")

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	ownerID, err := resolver.ResolveOwner(context.Background(), issued.Code)
	require.NoError(t, err)
	require.Equal(t, owner.ID, ownerID)
}

func TestPreviewForOwner(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "leo")

	codes, resolver := newResolverFixture(t, db)

	issued, err := codes.IssueOrRefresh(context.Background(), owner.ID)
	require.NoError(t, err)

	view, err := resolver.PreviewForOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Equal(t, "Test Owner", view.Name)
	require.Equal(t, issued.PublicURL, view.PublicURL)

	// Previews never touch the code path, so scan state stays untouched.
	var record models.ConnectionCode
	require.NoError(t, db.First(&record, "code = ?", issued.Code).Error)
	require.Zero(t, record.ScanCount)
}

func TestPreviewForOwnerDisabledProfile(t *testing.T) {
	db := openTestDB(t)
	owner := createOwner(t, db, "mallory", func(p *models.Profile) {
		p.PublicEnabled = false
	})

	_, resolver := newResolverFixture(t, db)

	_, err := resolver.PreviewForOwner(context.Background(), owner.ID)
	require.ErrorIs(t, err, ErrProfileNotFound)
}
