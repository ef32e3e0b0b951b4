package reconcile

import (
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
)

// stressFlags derives everything except the deadline counters, which depend on next steps.
func (p *Projector) stressFlags(in domainagg.ProjectionInput, latest []agentLatest, st foldState) agents.StressFlags {
	var flags agents.StressFlags

	flags.ConflictCount = liveConflicts(in.Conflicts, latest)
	flags.AgentConflicts = flags.ConflictCount > 0

	for _, l := range latest {
		if len(stringList(l.payload["missing_documents"])) > 0 || hasUnsubmittedRequiredDoc(l.payload) {
			flags.MissingRequiredDoc = true
			break
		}
	}

	var newest *time.Time
	for _, l := range latest {
		if newest == nil || l.report.Timestamp.After(*newest) {
			ts := l.report.Timestamp
			newest = &ts
		}
	}
	for _, c := range in.Changes {
		if c == nil {
			continue
		}
		if newest == nil || c.ChangedAt.After(*newest) {
			flags.RecentProfileChanges++
		}
	}
	flags.ProfileChangedSinceReport = newest != nil && flags.RecentProfileChanges > 0

	if len(st.counselorFlags) > 0 {
		flags.CounselorFlags = st.counselorFlags
	}
	return flags
}

// liveConflicts counts reports still standing in an unresolved conflict. Both sides of a
// stored pair must be their agent's latest report and unverified; a newer report from
// either agent supersedes the pair. Without stored pairs the latest reports' flags decide.
func liveConflicts(pairs []*agents.ReportConflict, latest []agentLatest) int {
	current := make(map[uint]*agents.AgentReport, len(latest))
	for _, l := range latest {
		current[l.report.ID] = l.report
	}
	open := func(id uint) bool {
		r, ok := current[id]
		return ok && !r.Verified
	}

	live := map[uint]bool{}
	if pairs == nil {
		for id, r := range current {
			if r.ConflictFlag && !r.Verified {
				live[id] = true
			}
		}
		return len(live)
	}
	for _, c := range pairs {
		if c != nil && open(c.ReportID) && open(c.OtherReportID) {
			live[c.ReportID] = true
			live[c.OtherReportID] = true
		}
	}
	return len(live)
}

func hasUnsubmittedRequiredDoc(payload map[string]any) bool {
	docs, _ := payload["required_documents"].([]any)
	for _, d := range docs {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if req, ok := m["required"].(bool); ok && !req {
			continue
		}
		if sub, ok := m["submitted"].(bool); ok && !sub {
			return true
		}
	}
	return false
}

// approachingDeadlines counts distinct dated items falling within the deadline window,
// measured in whole days from now.
func (p *Projector) approachingDeadlines(latest []agentLatest, steps []agents.NextStep, now time.Time) (int, bool) {
	window := p.Policy.DeadlineWindowDays
	if window <= 0 {
		window = 45
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	count := 0
	consider := func(label, raw string) {
		d, ok := parseDate(raw)
		if !ok {
			return
		}
		key := label + "\x00" + d.Format("2006-01-02")
		if seen[key] {
			return
		}
		seen[key] = true
		days := int(d.Sub(today).Hours() / 24)
		if days >= 0 && days <= window {
			count++
		}
	}

	for _, l := range latest {
		if s := stringField(l.payload, "application_deadline"); s != "" {
			consider(l.agent+":application_deadline", s)
		}
		switch t := l.payload["deadlines"].(type) {
		case map[string]any:
			for name, v := range t {
				if s, ok := v.(string); ok {
					consider(l.agent+":"+name, s)
				}
			}
		case []any:
			for _, item := range t {
				switch d := item.(type) {
				case string:
					consider(l.agent, d)
				case map[string]any:
					raw := stringField(d, "date")
					if raw == "" {
						raw = stringField(d, "deadline")
					}
					consider(l.agent+":"+stringField(d, "name"), raw)
				}
			}
		}
	}
	for _, s := range steps {
		if s.Deadline != "" {
			consider(s.Agent+":"+s.Action, s.Deadline)
		}
	}
	return count, count > 0
}
