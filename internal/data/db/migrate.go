package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds indexes gorm tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"idx_agent_reports_user_agent_time", `CREATE INDEX IF NOT EXISTS idx_agent_reports_user_agent_time ON agent_reports_log(user_profile_id, agent_name, "timestamp")`},
		{"idx_profile_changes_user_time", `CREATE INDEX IF NOT EXISTS idx_profile_changes_user_time ON user_profile_changes(user_profile_id, changed_at)`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
