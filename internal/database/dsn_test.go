package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "nexcard",
		Name: "nexcard",
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=nexcard dbname=nexcard sslmode=disable", dsn)
}

func TestBuildPostgresDSNOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "app",
		Host:     "db.internal",
		Port:     5433,
		Options:  map[string]string{"sslmode": "require", "application_name": "nexcard"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db.internal")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "password=secret")
	require.Contains(t, dsn, "application_name=nexcard")
	require.Contains(t, dsn, "sslmode=require")
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{User: "only-user"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "app",
	})
	require.NoError(t, err)
	require.Equal(t, "user:secret@tcp(127.0.0.1:3306)/app?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestBuildMySQLDSNHonoursDSNOverride(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{DSN: "raw-dsn"})
	require.NoError(t, err)
	require.Equal(t, "raw-dsn", dsn)
}
