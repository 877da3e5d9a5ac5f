package models

import "gorm.io/datatypes"

// Connection request statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusDeclined = "declined"
)

// ConnectionRequest is the parallel path to EmailInvitation for viewers who already
// hold an account: the target user accepts or declines instead of registering.
type ConnectionRequest struct {
	BaseModel

	RequesterID    *string `gorm:"type:uuid;index" json:"requester_id,omitempty"`
	RequesterEmail string  `gorm:"index" json:"requester_email"`

	TargetUserID string `gorm:"type:uuid;index;not null" json:"target_user_id"`
	Target       *User  `gorm:"foreignKey:TargetUserID;constraint:OnDelete:CASCADE" json:"-"`

	Status string `gorm:"default:pending;index" json:"status"`

	// Metadata holds location, message, and capture method supplied at request time.
	Metadata datatypes.JSONType[map[string]string] `json:"metadata"`
}
