// Package changetrack derives field-level audit rows from a profile before/after pair.
package changetrack

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
)

// Diff returns one ProfileChange per tracked field whose flattened value differs
// between before and after. A nil before means the profile had no prior values.
// Identical pairs yield no rows.
func Diff(before, after *user.UserProfile, at time.Time) []*user.ProfileChange {
	if after == nil {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var out []*user.ProfileChange
	for _, field := range user.TrackedFields {
		oldV := Flatten(before, field)
		newV := Flatten(after, field)
		if !distinct(oldV, newV) {
			continue
		}
		out = append(out, &user.ProfileChange{
			UserProfileID: after.ID,
			FieldName:     field,
			OldValue:      oldV,
			NewValue:      newV,
			ChangedAt:     at,
		})
	}
	return out
}

// Flatten renders a tracked field as stored in old_value/new_value.
// Null, blank strings and empty lists all flatten to nil.
func Flatten(p *user.UserProfile, field string) *string {
	if p == nil {
		return nil
	}
	switch field {
	case user.FieldGPA:
		return formatFloat(p.GPA)
	case user.FieldBudget:
		return formatFloat(p.Budget)
	case user.FieldIntendedMajor:
		if p.IntendedMajor == nil || strings.TrimSpace(*p.IntendedMajor) == "" {
			return nil
		}
		s := strings.TrimSpace(*p.IntendedMajor)
		return &s
	case user.FieldExtracurriculars:
		if len(p.Extracurriculars) == 0 {
			return nil
		}
		b, err := json.Marshal([]string(p.Extracurriculars))
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	default:
		return nil
	}
}

func formatFloat(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	return &s
}

// distinct follows IS DISTINCT FROM semantics on the flattened values.
func distinct(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return *a != *b
	}
}
