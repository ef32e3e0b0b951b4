package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
)

const (
	actionCompleteProfile  = "Complete your profile"
	actionReviewConflicts  = "Review conflicting agent findings"
	categoryProfile        = "profile"
	categoryReview         = "review"
	missingProfileFieldKey = "missing_profile_fields"
)

// nextSteps merges each agent's latest next_steps, deduplicated by (agent, action).
func nextSteps(latest []agentLatest, flags agents.StressFlags) []agents.NextStep {
	var steps []agents.NextStep
	seen := map[string]bool{}
	add := func(s agents.NextStep) {
		s.Action = strings.TrimSpace(s.Action)
		if s.Action == "" {
			return
		}
		key := s.Agent + "\x00" + strings.Join(strings.Fields(strings.ToLower(s.Action)), " ")
		if seen[key] {
			return
		}
		seen[key] = true
		steps = append(steps, s)
	}

	if flags.ConflictCount > 0 {
		add(agents.NextStep{
			Agent:       agents.AgentAdmissionsCounselor,
			Priority:    agents.PriorityHigh,
			Action:      actionReviewConflicts,
			Description: fmt.Sprintf("%d report(s) disagree with another agent", flags.ConflictCount),
			Category:    categoryReview,
		})
	}

	for _, l := range latest {
		if missing := stringList(l.payload[missingProfileFieldKey]); len(missing) > 0 {
			sort.Strings(missing)
			add(agents.NextStep{
				Agent:       l.agent,
				Priority:    agents.PriorityHigh,
				Action:      actionCompleteProfile,
				Description: "Missing: " + strings.Join(missing, ", "),
				Category:    categoryProfile,
			})
		}
		raw, _ := l.payload["next_steps"].([]any)
		for _, item := range raw {
			switch t := item.(type) {
			case string:
				add(agents.NextStep{Agent: l.agent, Priority: agents.PriorityMedium, Action: t})
			case map[string]any:
				action := stringField(t, "action")
				if action == "" {
					action = stringField(t, "title")
				}
				if action == "" {
					action = stringField(t, "step")
				}
				add(agents.NextStep{
					Agent:       l.agent,
					Priority:    normalizePriority(stringField(t, "priority")),
					Action:      action,
					Description: stringField(t, "description"),
					Deadline:    normalizeDate(stringField(t, "deadline")),
					Category:    stringField(t, "category"),
				})
			}
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		a, b := steps[i], steps[j]
		if pa, pb := priorityRank(a.Priority), priorityRank(b.Priority); pa != pb {
			return pa < pb
		}
		if a.Deadline != b.Deadline {
			if a.Deadline == "" || b.Deadline == "" {
				return b.Deadline == ""
			}
			return a.Deadline < b.Deadline
		}
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		return a.Action < b.Action
	})
	if steps == nil {
		steps = []agents.NextStep{}
	}
	return steps
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case agents.PriorityHigh, "urgent", "critical":
		return agents.PriorityHigh
	case agents.PriorityLow:
		return agents.PriorityLow
	default:
		return agents.PriorityMedium
	}
}

func priorityRank(p string) int {
	switch p {
	case agents.PriorityHigh:
		return 0
	case agents.PriorityMedium:
		return 1
	default:
		return 2
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "January 2, 2006", "Jan 2, 2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// normalizeDate rewrites parseable dates as YYYY-MM-DD and keeps anything else verbatim.
func normalizeDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
