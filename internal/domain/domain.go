package domain

import (
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/ledger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/reference"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
)

type UserProfile = user.UserProfile
type ProfileChange = user.ProfileChange

type TokenLedger = ledger.TokenLedger
type UsageEntry = ledger.UsageEntry

type AgentReport = agents.AgentReport
type ReportConflict = agents.ReportConflict
type AdmissionsSummary = agents.AdmissionsSummary
type NextStep = agents.NextStep
type StressFlags = agents.StressFlags

type ApplicationRequirement = reference.ApplicationRequirement
type VisaRequirement = reference.VisaRequirement

const (
	ProviderSystem = ledger.ProviderSystem

	AgentUniversitySearch        = agents.AgentUniversitySearch
	AgentScholarshipSearch       = agents.AgentScholarshipSearch
	AgentVisaRequirements        = agents.AgentVisaRequirements
	AgentApplicationRequirements = agents.AgentApplicationRequirements
	AgentAdmissionsCounselor     = agents.AgentAdmissionsCounselor

	PayloadEventKey  = agents.PayloadEventKey
	EventStageUpdate = agents.EventStageUpdate
)

var TrackedProfileFields = user.TrackedFields

// Models lists every persisted entity, in dependency order.
func Models() []any {
	return []any{
		&UserProfile{},
		&ProfileChange{},
		&TokenLedger{},
		&UsageEntry{},
		&AgentReport{},
		&ReportConflict{},
		&AdmissionsSummary{},
		&ApplicationRequirement{},
		&VisaRequirement{},
	}
}
