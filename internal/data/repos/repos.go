package repos

import (
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/ledger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/reference"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

type UserProfileRepo = user.UserProfileRepo
type ProfileChangeRepo = user.ProfileChangeRepo

type TokenLedgerRepo = ledger.TokenLedgerRepo
type UsageEntryRepo = ledger.UsageEntryRepo

type AgentReportRepo = agents.AgentReportRepo
type ReportConflictRepo = agents.ReportConflictRepo
type AdmissionsSummaryRepo = agents.AdmissionsSummaryRepo

type ApplicationRequirementRepo = reference.ApplicationRequirementRepo
type VisaRequirementRepo = reference.VisaRequirementRepo

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return user.NewUserProfileRepo(db, baseLog)
}
func NewProfileChangeRepo(db *gorm.DB, baseLog *logger.Logger) ProfileChangeRepo {
	return user.NewProfileChangeRepo(db, baseLog)
}

func NewTokenLedgerRepo(db *gorm.DB, baseLog *logger.Logger) TokenLedgerRepo {
	return ledger.NewTokenLedgerRepo(db, baseLog)
}
func NewUsageEntryRepo(db *gorm.DB, baseLog *logger.Logger) UsageEntryRepo {
	return ledger.NewUsageEntryRepo(db, baseLog)
}

func NewAgentReportRepo(db *gorm.DB, baseLog *logger.Logger) AgentReportRepo {
	return agents.NewAgentReportRepo(db, baseLog)
}
func NewReportConflictRepo(db *gorm.DB, baseLog *logger.Logger) ReportConflictRepo {
	return agents.NewReportConflictRepo(db, baseLog)
}
func NewAdmissionsSummaryRepo(db *gorm.DB, baseLog *logger.Logger) AdmissionsSummaryRepo {
	return agents.NewAdmissionsSummaryRepo(db, baseLog)
}

func NewApplicationRequirementRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRequirementRepo {
	return reference.NewApplicationRequirementRepo(db, baseLog)
}
func NewVisaRequirementRepo(db *gorm.DB, baseLog *logger.Logger) VisaRequirementRepo {
	return reference.NewVisaRequirementRepo(db, baseLog)
}
