package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/models"
)

// Models lists every persistent type in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.OneTimeCode{},
		&models.City{},
		&models.Favorite{},
		&models.AuditLog{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
