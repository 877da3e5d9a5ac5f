package models

// Connection sources.
const (
	ConnectionSourceInvitation = "invitation"
	ConnectionSourceRequest    = "request"
)

// Connection is one direction of a mutual contact edge. Linking always writes the
// edge in both directions so each party sees the other in their contact list.
type Connection struct {
	BaseModel

	UserID        string `gorm:"type:uuid;index:idx_connection_pair,unique;not null" json:"user_id"`
	ContactUserID string `gorm:"type:uuid;index:idx_connection_pair,unique;not null" json:"contact_user_id"`
	Contact       *User  `gorm:"foreignKey:ContactUserID;constraint:OnDelete:CASCADE" json:"contact,omitempty"`

	Source string `json:"source"`
}
