package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/crm/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLiteFile = "crm.db"

// Dialect picks the gorm driver for DATABASE_TYPE. DATABASE_URL, when set,
// is passed to the driver as is.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch driverName(cfg) {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// DSN renders the connection string for the configured driver.
func DSN(cfg config.Config) (string, error) {
	driver := driverName(cfg)
	if cfg.DBURL != "" && driver != "sqlite" {
		return cfg.DBURL, nil
	}

	switch driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName), nil
	case "postgres":
		sslMode := cfg.DBSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode), nil
	case "sqlite":
		return sqliteDSN(cfg), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func driverName(cfg config.Config) string {
	switch name := strings.ToLower(strings.TrimSpace(cfg.DBType)); name {
	case "postgresql", "pg":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return name
	}
}

// sqliteDSN always enables foreign keys; order rows cascade through them.
func sqliteDSN(cfg config.Config) string {
	name := strings.TrimSpace(cfg.DBURL)
	if name == "" {
		name = strings.TrimSpace(cfg.DBName)
	}
	if name == "" || name == "crm" {
		name = defaultSQLiteFile
	}
	if strings.Contains(name, "_foreign_keys=") {
		return name
	}

	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + url.Values{"_foreign_keys": {"on"}}.Encode()
}
