// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Deal{},
		&models.TrackedListing{},
		&models.PriceHistoryEntry{},
		&models.ManualRemediationTask{},
		&models.ClickEvent{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_enable_service ON products(enable_service)",
		"CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand)",

		// Deal indexes
		"CREATE INDEX IF NOT EXISTS idx_deals_product_status ON deals(product_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_deals_expiration ON deals(expiration_date) WHERE expiration_date IS NOT NULL",

		// Tracked listing indexes: the due-candidate pool query drives these
		"CREATE INDEX IF NOT EXISTS idx_tracked_listings_due ON tracked_listings(status, next_check_at)",
		"CREATE INDEX IF NOT EXISTS idx_tracked_listings_deal ON tracked_listings(deal_id)",
		"CREATE INDEX IF NOT EXISTS idx_tracked_listings_item ON tracked_listings(marketplace, external_item_id)",

		// Price history indexes
		"CREATE INDEX IF NOT EXISTS idx_price_history_listing_time ON price_history_entries(listing_id, recorded_at DESC)",

		// Remediation indexes
		"CREATE INDEX IF NOT EXISTS idx_remediation_listing_status ON manual_remediation_tasks(listing_id, status)",

		// Click event indexes
		"CREATE INDEX IF NOT EXISTS idx_click_events_listing_time ON click_events(listing_id, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
