package models

import "time"

// ScanEvent is one append-only telemetry record for a successful code resolution.
// Rows here never influence the resolution that produced them.
type ScanEvent struct {
	BaseModel

	Code       string    `gorm:"index;not null" json:"code"`
	ScannedAt  time.Time `gorm:"index;not null" json:"scanned_at"`
	Location   string    `json:"location"`
	DeviceInfo string    `json:"device_info"`
	Referrer   string    `json:"referrer"`
	SessionID  string    `json:"session_id"`
}
