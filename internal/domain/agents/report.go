package agents

import (
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"gorm.io/datatypes"
)

const (
	AgentUniversitySearch        = "university_search"
	AgentScholarshipSearch       = "scholarship_search"
	AgentVisaRequirements        = "visa_requirements"
	AgentApplicationRequirements = "application_requirements"
	AgentAdmissionsCounselor     = "admissions_counselor"
)

// Explicit stage updates are recorded as counselor reports carrying this event marker,
// so the summary stays a projection over report history.
const (
	PayloadEventKey  = "event"
	EventStageUpdate = "stage_update"
)

// AgentReport is one agent's claim about a user at a point in time.
// ConflictFlag and Verified are owned by reconciliation, never by the submitting agent.
type AgentReport struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentName     string            `gorm:"column:agent_name;not null;index" json:"agent_name"`
	UserProfileID uint              `gorm:"column:user_profile_id;not null;index:idx_report_user_time,priority:1" json:"user_profile_id"`
	UserProfile   *user.UserProfile `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserProfileID;references:ID" json:"-"`
	Payload       datatypes.JSON    `gorm:"column:payload;not null" json:"payload"`
	Timestamp     time.Time         `gorm:"column:timestamp;not null;index:idx_report_user_time,priority:2" json:"timestamp"`
	ConflictFlag  bool              `gorm:"column:conflict_flag;not null;default:false;index" json:"conflict_flag"`
	Verified      bool              `gorm:"column:verified;not null;default:false;index" json:"verified"`
	VerifiedAt    *time.Time        `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (AgentReport) TableName() string { return "agent_reports_log" }

// ReportConflict records one disagreeing field between two reports. Both reports carry ConflictFlag.
type ReportConflict struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserProfileID uint      `gorm:"column:user_profile_id;not null;index" json:"user_profile_id"`
	ReportID      uint      `gorm:"column:report_id;not null;uniqueIndex:idx_conflict_pair_field,priority:1" json:"report_id"`
	OtherReportID uint      `gorm:"column:other_report_id;not null;uniqueIndex:idx_conflict_pair_field,priority:2;index" json:"other_report_id"`
	Field         string    `gorm:"column:field;not null;uniqueIndex:idx_conflict_pair_field,priority:3" json:"field"`
	AgentName     string    `gorm:"column:agent_name;not null" json:"agent_name"`
	OtherAgent    string    `gorm:"column:other_agent;not null" json:"other_agent"`
	Value         string    `gorm:"column:value" json:"value"`
	OtherValue    string    `gorm:"column:other_value" json:"other_value"`
	Detail        string    `gorm:"column:detail" json:"detail"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (ReportConflict) TableName() string { return "agent_report_conflict" }

// NormalizeAgentName maps display names ("Visa Requirements Agent") to canonical keys ("visa_requirements").
func NormalizeAgentName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " agent")
	n = strings.TrimSuffix(n, "_agent")
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	for strings.Contains(n, "__") {
		n = strings.ReplaceAll(n, "__", "_")
	}
	switch n {
	case "visa", "visa_requirement":
		return AgentVisaRequirements
	case "scholarship", "scholarships":
		return AgentScholarshipSearch
	case "university", "universities":
		return AgentUniversitySearch
	case "counselor", "admissions":
		return AgentAdmissionsCounselor
	}
	return strings.Trim(n, "_")
}

// FieldConflict is one semantic field on which two reports disagree.
type FieldConflict struct {
	Field      string
	Value      string
	OtherValue string
	Detail     string
}

// CompareFunc returns the disagreements between a newly submitted report and an
// earlier report from a different agent. It must not mutate either report.
type CompareFunc func(newReport, other *AgentReport) []FieldConflict
