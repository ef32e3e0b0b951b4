package aggregates

import (
	"strings"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"gorm.io/gorm"
)

// VersionGuard replaces rows that carry an integer version column.
type VersionGuard struct {
	db *gorm.DB
}

func NewVersionGuard(db *gorm.DB) VersionGuard {
	return VersionGuard{db: db}
}

// Advance applies updates to the row only while it still holds expected, and moves the
// version to expected+1 in the same statement. Losing the race is a CodeConflict error.
func (g VersionGuard) Advance(dbc dbctx.Context, table string, id uint, expected int, updates map[string]any) (int, error) {
	table = strings.TrimSpace(table)
	if table == "" || id == 0 {
		return 0, ValidationError("table and id are required")
	}
	if expected < 1 {
		return 0, ValidationError("versions start at 1")
	}
	db := dbc.Tx
	if db == nil {
		db = g.db
	}
	if db == nil {
		return 0, ValidationError("missing db transaction context")
	}

	next := expected + 1
	cols := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		cols[k] = v
	}
	cols["version"] = next

	res := db.WithContext(dbc.Ctx).Table(table).
		Where("id = ? AND version = ?", id, expected).
		Updates(cols)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ConflictError(table + " row changed concurrently")
	}
	return next, nil
}
