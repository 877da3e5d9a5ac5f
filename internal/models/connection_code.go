package models

import "time"

// ConnectionCode is an opaque capability token granting anonymous, field-filtered
// access to its owner's public profile while active and unexpired.
type ConnectionCode struct {
	BaseModel

	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	OwnerUserID string `gorm:"type:uuid;index;not null" json:"owner_user_id"`
	Owner       *User  `gorm:"foreignKey:OwnerUserID;constraint:OnDelete:CASCADE" json:"-"`

	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`

	// Rollup counters maintained by the scan recorder. Approximate under concurrency.
	ScanCount        int64      `gorm:"default:0" json:"scan_count"`
	LastScannedAt    *time.Time `json:"last_scanned_at"`
	LastScanLocation string     `json:"last_scan_location"`
}

// Expired reports whether the code's lifetime has elapsed at the supplied instant.
func (c *ConnectionCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable reports whether the code can still resolve a profile at the supplied instant.
func (c *ConnectionCode) Usable(now time.Time) bool {
	return c.IsActive && !c.Expired(now)
}
