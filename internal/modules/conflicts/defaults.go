package conflicts

import "github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"

// Default is the built-in rule set used when no policy file overrides it.
func Default() Policy {
	return Policy{
		WindowDays: 30,
		Rules: []Rule{
			{
				Name:   "budget",
				Agents: []string{AnyAgent},
				Field:  "recommended_budget",
				Match:  MatchExact,
			},
			{
				Name:   "visa_eligibility",
				Agents: []string{AnyAgent},
				Field:  "visa_eligible",
				Match:  MatchExact,
			},
			{
				Name:   "deadline",
				Agents: []string{agents.AgentApplicationRequirements, agents.AgentUniversitySearch, agents.AgentAdmissionsCounselor},
				Field:  "application_deadline",
				Scope:  []string{"university", "program"},
				Match:  MatchExact,
			},
			{
				Name:       "application_requirements",
				Agents:     []string{agents.AgentApplicationRequirements, agents.AgentUniversitySearch, agents.AgentAdmissionsCounselor},
				Field:      "application_requirements_stored",
				Scope:      []string{"university"},
				Match:      MatchNumeric,
				IgnoreZero: true,
			},
			{
				Name:       "university_count",
				Agents:     []string{agents.AgentUniversitySearch, agents.AgentAdmissionsCounselor},
				Field:      "universities_found",
				Match:      MatchNumeric,
				Tolerance:  10,
				IgnoreZero: true,
			},
			{
				Name:       "financial",
				Agents:     []string{agents.AgentScholarshipSearch, agents.AgentAdmissionsCounselor},
				Field:      "scholarships_found",
				Match:      MatchNumeric,
				Tolerance:  50,
				IgnoreZero: true,
			},
			{
				Name:   "visa_requirements",
				Agents: []string{agents.AgentVisaRequirements, agents.AgentAdmissionsCounselor},
				Field:  "visa_requirements_stored",
				Scope:  []string{"citizenship", "destination"},
				Match:  MatchNumeric,
			},
		},
	}
}
