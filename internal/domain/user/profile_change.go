package user

import "time"

// Tracked profile fields. Every update that changes one of these appends one
// ProfileChange row per changed field.
const (
	FieldGPA              = "gpa"
	FieldBudget           = "budget"
	FieldIntendedMajor    = "intended_major"
	FieldExtracurriculars = "extracurriculars"
)

// TrackedFields is the fixed, ordered set of audited fields.
var TrackedFields = []string{FieldGPA, FieldBudget, FieldIntendedMajor, FieldExtracurriculars}

// ProfileChange is an immutable audit row. OldValue is nil when the field had no prior value.
type ProfileChange struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserProfileID uint         `gorm:"column:user_profile_id;not null;index" json:"user_profile_id"`
	UserProfile   *UserProfile `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserProfileID;references:ID" json:"-"`
	FieldName     string       `gorm:"column:field_name;not null;index" json:"field_name"`
	OldValue      *string      `gorm:"column:old_value" json:"old_value"`
	NewValue      *string      `gorm:"column:new_value" json:"new_value"`
	ChangedAt     time.Time    `gorm:"column:changed_at;not null;index" json:"changed_at"`
}

func (ProfileChange) TableName() string { return "user_profile_changes" }
