package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
