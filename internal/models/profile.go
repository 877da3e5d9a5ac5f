package models

import "gorm.io/datatypes"

// Profile holds the presentation data a user can expose through a connection code.
// Visibility is gated twice: PublicEnabled is a binary switch for the whole preview,
// then each Allow* flag controls a single field inside an enabled preview.
type Profile struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User   *User  `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	Bio             string                      `json:"bio"`
	Company         string                      `json:"company"`
	JobTitle        string                      `json:"job_title"`
	ProfileImageURL string                      `json:"profile_image_url"`
	Interests       datatypes.JSONSlice[string] `json:"interests"`

	// SocialLinks maps a platform key (e.g. "linkedin") to a URL. Kept free-form since
	// supported platforms change without schema migrations.
	SocialLinks datatypes.JSONType[map[string]string] `json:"social_links"`

	PublicEnabled bool `gorm:"default:false;index" json:"public_enabled"`

	AllowBio          bool `gorm:"default:true" json:"allow_bio"`
	AllowCompany      bool `gorm:"default:true" json:"allow_company"`
	AllowJobTitle     bool `gorm:"default:true" json:"allow_job_title"`
	AllowProfileImage bool `gorm:"default:true" json:"allow_profile_image"`
	AllowInterests    bool `gorm:"default:false" json:"allow_interests"`
	AllowSocialLinks  bool `gorm:"default:false" json:"allow_social_links"`
}
