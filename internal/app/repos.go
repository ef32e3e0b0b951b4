package app

import (
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

type Repos struct {
	Profile      repos.UserProfileRepo
	Change       repos.ProfileChangeRepo
	Ledger       repos.TokenLedgerRepo
	Usage        repos.UsageEntryRepo
	Report       repos.AgentReportRepo
	Conflict     repos.ReportConflictRepo
	Summary      repos.AdmissionsSummaryRepo
	Requirements repos.ApplicationRequirementRepo
	Visa         repos.VisaRequirementRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Profile:      repos.NewUserProfileRepo(db, log),
		Change:       repos.NewProfileChangeRepo(db, log),
		Ledger:       repos.NewTokenLedgerRepo(db, log),
		Usage:        repos.NewUsageEntryRepo(db, log),
		Report:       repos.NewAgentReportRepo(db, log),
		Conflict:     repos.NewReportConflictRepo(db, log),
		Summary:      repos.NewAdmissionsSummaryRepo(db, log),
		Requirements: repos.NewApplicationRequirementRepo(db, log),
		Visa:         repos.NewVisaRequirementRepo(db, log),
	}
}
