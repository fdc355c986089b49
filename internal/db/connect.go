// Package db opens and migrates the console's history database.
package db

import (
	"fmt"

	"github.com/crosswire/intercom/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the history database. The default backend is a local
// sqlite file; ops rooms that share one history across consoles point the
// mysql driver at a central server instead.
func Open(driver, path, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch driver {
	case "", "sqlite":
		if path == "" {
			return nil, fmt.Errorf("db: sqlite path is required")
		}
		gdb, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open %s: %w", path, err)
		}
		return gdb, nil
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("db: mysql dsn is required")
		}
		gdb, err := gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect mysql: %w", err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("db: unknown driver %q", driver)
	}
}

// OpenMemory opens an in-memory sqlite database, used by tests.
func OpenMemory() (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open in-memory: %w", err)
	}
	return gdb, nil
}

// AllModels returns every model covered by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&models.CallHistoryEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
