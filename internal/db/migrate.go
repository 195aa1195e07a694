package db

import (
	"dealflow/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Pipeline{},
		&models.Stage{},
		&models.Deal{},
		&models.DealMove{},
		&models.ChangeEvent{},
	)
}
