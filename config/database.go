package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the database selected by DB_DRIVER (mysql by default) and applies migrations.
func InitDB() {
	driver := DatabaseDriver()

	dialector, err := dialectorFor(driver)
	if err != nil {
		log.Fatal("Failed to configure database:", err)
	}

	// Configure GORM
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if environment == "production" && debugSQL != "true" {
		logLevel = logger.Warn
	}

	config := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
	}

	DB, err = gorm.Open(dialector, config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := RunMigrations(DB, driver); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Printf("Database connected successfully (driver=%s)", driver)
}

// DatabaseDriver returns the normalized DB_DRIVER value.
func DatabaseDriver() string {
	switch d := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER"))); d {
	case "", "mysql":
		return "mysql"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

func dialectorFor(driver string) (gorm.Dialector, error) {
	// Get database credentials from environment variables
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbDatabase := os.Getenv("DB_DATABASE")
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")

	switch driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbUsername,
			dbPassword,
			dbHost,
			dbPort,
			dbDatabase,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		sslMode := os.Getenv("DB_SSLMODE")
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbHost, dbPort, dbUsername, dbPassword, dbDatabase, sslMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			dsn = "data/photo-qc.sqlite?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func ensureSQLiteDirectory(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %q: %w", dir, err)
	}
	return nil
}
