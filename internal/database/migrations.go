package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.ConnectionCode{},
		&models.ScanEvent{},
		&models.EmailInvitation{},
		&models.ConnectionRequest{},
		&models.Connection{},
		&models.CacheEntry{},
	)
}
