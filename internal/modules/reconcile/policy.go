// Package reconcile folds agent report and profile change history into an admissions summary.
//
// The projection is pure: the persisted summary is a cache of Project's output and can be
// rebuilt from history at any time.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
)

const (
	StageGettingStarted         = "Getting Started"
	StageProfileReview          = "Profile Review"
	StageUniversityDiscovery    = "University Discovery"
	StageApplicationPreparation = "Application Preparation"
	StageSubmitted              = "Submitted"
	StageDecisionPending        = "Decision Pending"
	StageDecided                = "Decided"
)

// Stage is one rung of the ladder. Weight is the progress score reached on entering it.
type Stage struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// InferenceRule advances the stage when a report from Agent carries Field.
// With Equals unset any truthy value matches.
type InferenceRule struct {
	Agent  string `yaml:"agent"`
	Field  string `yaml:"field"`
	Equals any    `yaml:"equals,omitempty"`
	Stage  string `yaml:"stage"`
}

type Policy struct {
	InitialStage       string          `yaml:"initial_stage"`
	Stages             []Stage         `yaml:"stages"`
	ExpectedAgents     []string        `yaml:"expected_agents"`
	Inference          []InferenceRule `yaml:"inference"`
	DeadlineWindowDays int             `yaml:"deadline_window_days"`
}

func DefaultPolicy() Policy {
	return Policy{
		InitialStage: StageGettingStarted,
		Stages: []Stage{
			{Name: StageGettingStarted, Weight: 0},
			{Name: StageProfileReview, Weight: 10},
			{Name: StageUniversityDiscovery, Weight: 25},
			{Name: StageApplicationPreparation, Weight: 45},
			{Name: StageSubmitted, Weight: 65},
			{Name: StageDecisionPending, Weight: 80},
			{Name: StageDecided, Weight: 100},
		},
		ExpectedAgents: []string{
			agents.AgentUniversitySearch,
			agents.AgentScholarshipSearch,
			agents.AgentVisaRequirements,
			agents.AgentApplicationRequirements,
		},
		Inference: []InferenceRule{
			{Agent: agents.AgentAdmissionsCounselor, Field: "profile_reviewed", Stage: StageProfileReview},
			{Agent: agents.AgentUniversitySearch, Field: "universities_found", Stage: StageUniversityDiscovery},
			{Agent: agents.AgentApplicationRequirements, Field: "application_requirements_stored", Stage: StageApplicationPreparation},
			{Agent: agents.AgentApplicationRequirements, Field: "application_submitted", Equals: true, Stage: StageSubmitted},
			{Agent: "*", Field: "decision_pending", Equals: true, Stage: StageDecisionPending},
			{Agent: "*", Field: "admission_decision", Stage: StageDecided},
		},
		DeadlineWindowDays: 45,
	}
}

func (p Policy) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("reconcile policy: at least one stage is required")
	}
	seen := map[string]bool{}
	prev := -1.0
	for _, s := range p.Stages {
		key := stageKey(s.Name)
		if key == "" {
			return fmt.Errorf("reconcile policy: stage name is required")
		}
		if seen[key] {
			return fmt.Errorf("reconcile policy: duplicate stage %q", s.Name)
		}
		seen[key] = true
		if s.Weight < 0 || s.Weight > 100 {
			return fmt.Errorf("reconcile policy: stage %q weight must be within [0,100]", s.Name)
		}
		if s.Weight < prev {
			return fmt.Errorf("reconcile policy: stage weights must not decrease (%q)", s.Name)
		}
		prev = s.Weight
	}
	if p.InitialStage != "" && !seen[stageKey(p.InitialStage)] {
		return fmt.Errorf("reconcile policy: initial stage %q is not on the ladder", p.InitialStage)
	}
	for _, r := range p.Inference {
		if strings.TrimSpace(r.Field) == "" {
			return fmt.Errorf("reconcile policy: inference rule for %q needs a field", r.Agent)
		}
		if !seen[stageKey(r.Stage)] {
			return fmt.Errorf("reconcile policy: inference stage %q is not on the ladder", r.Stage)
		}
	}
	if p.DeadlineWindowDays < 0 {
		return fmt.Errorf("reconcile policy: deadline_window_days must be >= 0")
	}
	return nil
}

func (p Policy) initial() string {
	if strings.TrimSpace(p.InitialStage) != "" {
		return p.InitialStage
	}
	if len(p.Stages) > 0 {
		return p.Stages[0].Name
	}
	return StageGettingStarted
}

// Rank returns the ladder position of a stage label; free-form labels are unknown.
func (p Policy) Rank(stage string) (int, bool) {
	key := stageKey(stage)
	for i, s := range p.Stages {
		if stageKey(s.Name) == key {
			return i, true
		}
	}
	return 0, false
}

// Canonical returns the ladder spelling of a known stage, or the trimmed label.
func (p Policy) Canonical(stage string) string {
	if i, ok := p.Rank(stage); ok {
		return p.Stages[i].Name
	}
	return strings.TrimSpace(stage)
}

func (p Policy) weight(rank int) float64 {
	if rank < 0 || rank >= len(p.Stages) {
		return 0
	}
	return p.Stages[rank].Weight
}

// score is the stage weight plus the share of the gap to the next stage covered by
// the expected agents that have reported.
func (p Policy) score(rank int, coverage float64) float64 {
	base := p.weight(rank)
	if rank+1 >= len(p.Stages) {
		return base
	}
	span := p.weight(rank+1) - base
	if coverage < 0 {
		coverage = 0
	}
	if coverage > 1 {
		coverage = 1
	}
	return base + span*coverage
}

func stageKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
