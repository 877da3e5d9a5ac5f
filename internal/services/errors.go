package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrCodeNotFound covers absent, deactivated, and not-public codes. The three cases
	// are deliberately indistinguishable to anonymous callers.
	ErrCodeNotFound = errors.New("connection code: not found")
	// ErrCodeExpired indicates the caller's own current code has passed its lifetime.
	ErrCodeExpired = errors.New("connection code: expired")
	// ErrProfileNotFound indicates the owner has no profile row.
	ErrProfileNotFound = errors.New("profile: not found")
	// ErrInvitationNotFound indicates no invitation matches the identifier.
	ErrInvitationNotFound = errors.New("invitation: not found")
	// ErrInvitationExpired indicates the invitation can no longer be linked or resent.
	ErrInvitationExpired = errors.New("invitation: expired")
	// ErrRequestNotFound indicates no connection request matches the identifier.
	ErrRequestNotFound = errors.New("connection request: not found")
	// ErrRequestAlreadyResolved indicates the request has already been accepted or declined.
	ErrRequestAlreadyResolved = errors.New("connection request: already resolved")
	// ErrInvalidCredentials covers unknown accounts, disabled accounts, and wrong
	// passwords without distinguishing them.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
