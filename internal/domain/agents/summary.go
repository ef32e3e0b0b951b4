package agents

import (
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"gorm.io/datatypes"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type NextStep struct {
	Agent       string `json:"agent"`
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Category    string `json:"category,omitempty"`
}

// StressFlags are derived signals; clients cannot set them directly.
type StressFlags struct {
	AgentConflicts            bool           `json:"agent_conflicts"`
	ConflictCount             int            `json:"conflict_count"`
	ApproachingDeadline       bool           `json:"approaching_deadline"`
	ApproachingDeadlines      int            `json:"approaching_deadlines"`
	MissingRequiredDoc        bool           `json:"missing_required_doc"`
	ProfileChangedSinceReport bool           `json:"profile_changed_since_report"`
	RecentProfileChanges      int            `json:"recent_profile_changes"`
	CounselorFlags            map[string]any `json:"counselor_flags,omitempty"`
}

// AdmissionsSummary is a cached projection of the report/change history; one row per user.
type AdmissionsSummary struct {
	ID              uint                            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserProfileID   uint                            `gorm:"column:user_profile_id;not null;uniqueIndex" json:"user_profile_id"`
	UserProfile     *user.UserProfile               `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserProfileID;references:ID" json:"-"`
	CurrentStage    string                          `gorm:"column:current_stage;not null" json:"current_stage"`
	ProgressScore   float64                         `gorm:"column:progress_score;not null;default:0" json:"progress_score"`
	ProgressFloor   float64                         `gorm:"column:progress_floor;not null;default:0" json:"-"`
	NextSteps       datatypes.JSONSlice[NextStep]   `gorm:"column:next_steps" json:"next_steps"`
	ActiveAgents    datatypes.JSONSlice[string]     `gorm:"column:active_agents" json:"active_agents"`
	Advice          string                          `gorm:"column:advice" json:"advice"`
	StressFlags     datatypes.JSONType[StressFlags] `gorm:"column:stress_flags" json:"stress_flags"`
	LastReportID    uint                            `gorm:"column:last_report_id;not null;default:0" json:"-"`
	LastChangeID    uint                            `gorm:"column:last_change_id;not null;default:0" json:"-"`
	ReportWatermark *time.Time                      `gorm:"column:report_watermark" json:"-"`
	ActiveSince     *time.Time                      `gorm:"column:active_since" json:"-"`
	Version         int                             `gorm:"column:version;not null;default:0" json:"version"`
	LastUpdated     time.Time                       `gorm:"column:last_updated;not null" json:"last_updated"`
}

func (AdmissionsSummary) TableName() string { return "admissions_summary" }
