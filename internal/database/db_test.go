package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexcard/nexcard/internal/models"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{"users", "profiles", "connection_codes", "scan_events", "email_invitations", "connection_requests", "connections"} {
		require.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}

	user := models.User{Username: "owner", Email: "owner@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	require.NotEmpty(t, user.ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
