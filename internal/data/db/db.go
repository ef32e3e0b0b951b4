// Package db opens the relational store and migrates the schema.
package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
}

// Open connects to the configured driver. SQLite is the default so the service and its
// tests run without external infrastructure.
func Open(logg *logger.Logger, cfg Config) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "postgresql", "pg":
		svc, err := NewPostgresService(logg, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return svc.DB(), nil
	case "", DriverSQLite, "sqlite3":
		svc, err := NewSQLiteService(logg, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return svc.DB(), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
}
