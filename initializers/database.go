package initializers

import (
	"fmt"
	"time"

	"github.com/Kariqs/amexan-marketplace/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func ConnectToDB() error {
	logLevel := logger.Warn
	if !Config.IsProduction() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(Config.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = db
	Log.Info("Connected to database")
	return nil
}

func SyncDatabase() error {
	if err := DB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	Log.Info("Database synced successfully.")
	return nil
}
