package models

import (
	"time"

	"gorm.io/datatypes"
)

// Invitation statuses. The only legal transitions are sent -> registered and
// sent -> expired; both are terminal.
const (
	InvitationStatusSent       = "sent"
	InvitationStatusRegistered = "registered"
	InvitationStatusExpired    = "expired"
)

// EmailInvitation records an anonymous viewer's request to connect with a code owner.
// It becomes a mutual connection once the recipient email completes registration.
type EmailInvitation struct {
	BaseModel

	RecipientEmail string `gorm:"index;not null" json:"recipient_email"`
	SenderUserID   string `gorm:"type:uuid;index;not null" json:"sender_user_id"`
	Sender         *User  `gorm:"foreignKey:SenderUserID;constraint:OnDelete:CASCADE" json:"-"`

	ConnectionCode string `gorm:"index;not null" json:"connection_code"`
	Message        string `json:"message"`

	// ScanData captures viewer-supplied context (location, device) at submission time.
	ScanData datatypes.JSONType[map[string]string] `json:"scan_data"`

	EmailSentAt *time.Time `json:"email_sent_at"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`

	Status string `gorm:"default:sent;index" json:"status"`

	RegisteredUserID        *string    `gorm:"type:uuid" json:"registered_user_id,omitempty"`
	RegistrationCompletedAt *time.Time `json:"registration_completed_at,omitempty"`
}
