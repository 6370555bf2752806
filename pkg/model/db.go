package model

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the configured database and migrates the schema.
// Supported drivers are "sqlite" and "postgres"; an empty driver means
// sqlite.
func NewDatabase(driver string, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.Logger = logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		LogLevel: logger.Warn,
	})

	err = migrate(db)
	if err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	models := []interface{}{
		&Network{},
		&WireGuardKey{},
		&Server{},
		&Client{},
		&ServerRoute{},
		&PeerPresharedKey{},
	}

	return db.AutoMigrate(models...)
}
