package user

import (
	"time"

	"gorm.io/datatypes"
)

// UserProfile is owned by the profile collaborator. Within this service it is
// read-mostly and written only through the tracked-update path.
type UserProfile struct {
	ID                 uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName           string                      `gorm:"column:full_name" json:"full_name"`
	Email              string                      `gorm:"column:email;index" json:"email,omitempty"`
	GPA                *float64                    `gorm:"column:gpa" json:"gpa"`
	Budget             *float64                    `gorm:"column:budget" json:"budget"`
	IntendedMajor      *string                     `gorm:"column:intended_major" json:"intended_major"`
	Extracurriculars   datatypes.JSONSlice[string] `gorm:"column:extracurriculars" json:"extracurriculars"`
	CitizenshipCountry string                      `gorm:"column:citizenship_country;index" json:"citizenship_country,omitempty"`
	DestinationCountry string                      `gorm:"column:destination_country;index" json:"destination_country,omitempty"`
	TestScores         datatypes.JSON              `gorm:"column:test_scores" json:"test_scores,omitempty"`
	AcademicBackground datatypes.JSON              `gorm:"column:academic_background" json:"academic_background,omitempty"`
	Preferences        datatypes.JSON              `gorm:"column:preferences" json:"preferences,omitempty"`
	CreatedAt          time.Time                   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }
