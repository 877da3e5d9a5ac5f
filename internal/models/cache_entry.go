package models

import (
	"time"
)

// CacheEntry is a cached value stored in the primary database. It backs rate limit
// counters on deployments that run without Redis.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
