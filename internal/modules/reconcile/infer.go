package reconcile

import (
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/conflicts"
)

// StageInferer proposes a stage from one report. Implementations are agent-specific policy.
type StageInferer interface {
	Infer(agentName string, payload map[string]any) (stage string, ok bool)
}

// RuleInferer applies inference rules in order and proposes the highest-ranked match.
type RuleInferer struct {
	Policy Policy
}

func (r RuleInferer) Infer(agentName string, payload map[string]any) (string, bool) {
	agent := agents.NormalizeAgentName(agentName)
	best, bestRank, found := "", -1, false
	for _, rule := range r.Policy.Inference {
		if rule.Agent != "*" && agents.NormalizeAgentName(rule.Agent) != agent {
			continue
		}
		v, ok := conflicts.Lookup(payload, rule.Field)
		if !ok {
			continue
		}
		if rule.Equals != nil {
			if conflicts.Normalize(v) != conflicts.Normalize(rule.Equals) {
				continue
			}
		} else if !truthy(v) {
			continue
		}
		rank, known := r.Policy.Rank(rule.Stage)
		if !known || rank <= bestRank {
			continue
		}
		best, bestRank, found = r.Policy.Canonical(rule.Stage), rank, true
	}
	return best, found
}

// InfererFunc adapts a function to StageInferer.
type InfererFunc func(agentName string, payload map[string]any) (string, bool)

func (f InfererFunc) Infer(agentName string, payload map[string]any) (string, bool) {
	return f(agentName, payload)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
