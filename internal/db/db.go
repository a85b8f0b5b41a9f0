package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Project-Caravana/telemetry-service/config"
	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// Connect establishes a connection to the database
func Connect(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	var logLevel logger.LogLevel
	if cfg.Debug {
		logLevel = logger.Info
	} else {
		logLevel = logger.Error
	}

	gormLogger := logger.New(
		&logAdapter{log: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// readingIndexes are created explicitly because the query paths sort on
// created_at descending and GORM index tags cannot express composite
// descending indexes across embedded fields.
var readingIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_readings_vehicle_time ON telemetry_readings (vehicle_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_company_time ON telemetry_readings (company_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_employee_time ON telemetry_readings (employee_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_check_engine_time ON telemetry_readings (check_engine, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_severity_time ON alerts (severity, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_vehicle_time ON alerts (vehicle_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_company_time ON alerts (company_id, created_at DESC)`,
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Vehicle{},
		&model.TelemetryReading{},
		&model.Alert{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	for _, stmt := range readingIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

// IsRecordNotFoundError checks if an error is a record not found error
func IsRecordNotFoundError(err error) bool {
	return err == gorm.ErrRecordNotFound
}

// logAdapter adapts the GORM logger to logrus
type logAdapter struct {
	log *logrus.Logger
}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
