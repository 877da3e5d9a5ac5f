package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionCodeUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	code := ConnectionCode{IsActive: true, ExpiresAt: now.Add(time.Hour)}
	require.True(t, code.Usable(now))

	code.IsActive = false
	require.False(t, code.Usable(now))

	code.IsActive = true
	code.ExpiresAt = now
	require.True(t, code.Expired(now))
	require.False(t, code.Usable(now))
}

func TestUserDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user User
		want string
	}{
		{"full name", User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", User{FirstName: "Ada"}, "Ada"},
		{"username fallback", User{Username: "ada"}, "ada"},
		{"email fallback", User{Email: "ada@example.com"}, "ada@example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.user.DisplayName())
		})
	}
}
