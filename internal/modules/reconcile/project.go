package reconcile

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/conflicts"
	"gorm.io/datatypes"
)

type Projector struct {
	Policy  Policy
	Inferer StageInferer
}

func NewProjector(policy Policy, inferer StageInferer) *Projector {
	if inferer == nil {
		inferer = RuleInferer{Policy: policy}
	}
	return &Projector{Policy: policy, Inferer: inferer}
}

// Func exposes Project as an aggregate projection.
func (p *Projector) Func() domainagg.ProjectFunc {
	return p.Project
}

type foldState struct {
	stage          string
	rank           int
	floor          float64
	regressedAt    uint
	advice         string
	counselorFlags map[string]any
}

type agentLatest struct {
	agent   string
	report  *agents.AgentReport
	payload map[string]any
}

// Project derives the summary from the full history. It reads in.Previous to carry the
// active-agent window and the stored progress floor forward, so repeated calls over the
// same history agree and a policy reload alone never lowers the score.
func (p *Projector) Project(in domainagg.ProjectionInput) *agents.AdmissionsSummary {
	pol := p.Policy
	inferer := p.Inferer
	if inferer == nil {
		inferer = RuleInferer{Policy: pol}
	}

	chrono := chronological(in.Reports)
	decoded := make(map[uint]map[string]any, len(chrono))

	st := foldState{stage: pol.Canonical(pol.initial())}
	st.rank, _ = pol.Rank(st.stage)

	expected := map[string]bool{}
	for _, a := range pol.ExpectedAgents {
		expected[agents.NormalizeAgentName(a)] = true
	}
	seen := map[string]bool{}

	for _, r := range chrono {
		payload := conflicts.DecodePayload(r.Payload)
		decoded[r.ID] = payload
		if IsStageUpdate(r.AgentName, payload) {
			if p.applyStageUpdate(&st, payload) {
				st.regressedAt = r.ID
			}
			continue
		}
		agent := agents.NormalizeAgentName(r.AgentName)
		if expected[agent] {
			seen[agent] = true
		}
		if stage, ok := inferer.Infer(r.AgentName, payload); ok {
			if rank, known := pol.Rank(stage); known && rank > st.rank {
				st.rank, st.stage = rank, pol.Canonical(stage)
			}
		}
		if advice := stringField(payload, "advice"); advice != "" {
			st.advice = advice
		}
		coverage := 0.0
		if len(expected) > 0 {
			coverage = float64(len(seen)) / float64(len(expected))
		}
		if s := pol.score(st.rank, coverage); s > st.floor {
			st.floor = s
		}
	}

	latest := latestPerAgent(chrono, decoded)
	flags := p.stressFlags(in, latest, st)
	steps := nextSteps(latest, flags)
	flags.ApproachingDeadlines, flags.ApproachingDeadline = p.approachingDeadlines(latest, steps, in.Now)

	floor := carriedFloor(in.Previous, st)

	out := &agents.AdmissionsSummary{
		UserProfileID: in.UserID,
		CurrentStage:  st.stage,
		ProgressScore: round2(clamp(floor, 0, 100)),
		ProgressFloor: floor,
		NextSteps:     datatypes.JSONSlice[agents.NextStep](steps),
		Advice:        st.advice,
		StressFlags:   datatypes.NewJSONType(flags),
		LastUpdated:   in.Now,
	}

	var watermark *time.Time
	for _, r := range chrono {
		if r.ID > out.LastReportID {
			out.LastReportID = r.ID
		}
		if watermark == nil || r.Timestamp.After(*watermark) {
			ts := r.Timestamp
			watermark = &ts
		}
	}
	for _, c := range in.Changes {
		if c != nil && c.ID > out.LastChangeID {
			out.LastChangeID = c.ID
		}
	}
	out.ReportWatermark = watermark
	out.ActiveSince = activeSince(in.Previous, watermark)
	out.ActiveAgents = datatypes.JSONSlice[string](activeAgents(chrono, out.ActiveSince))
	return out
}

// IsStageUpdate reports whether a report is an explicit stage update event.
func IsStageUpdate(agentName string, payload map[string]any) bool {
	if agents.NormalizeAgentName(agentName) != agents.AgentAdmissionsCounselor {
		return false
	}
	return stringField(payload, agents.PayloadEventKey) == agents.EventStageUpdate
}

// carriedFloor keeps the stored floor unless an explicit regression arrived after the
// previous summary was written.
func carriedFloor(prev *agents.AdmissionsSummary, st foldState) float64 {
	if prev == nil || (st.regressedAt != 0 && st.regressedAt > prev.LastReportID) {
		return st.floor
	}
	return math.Max(st.floor, prev.ProgressFloor)
}

// applyStageUpdate honours an explicit update. Moving down the ladder is an explicit
// regression and resets the progress floor; otherwise the floor only rises.
func (p *Projector) applyStageUpdate(st *foldState, payload map[string]any) (regressed bool) {
	label := strings.TrimSpace(stringField(payload, "stage"))
	if label == "" {
		return false
	}
	score, hasScore := numberField(payload, "progress_score")
	if rank, known := p.Policy.Rank(label); known {
		if rank < st.rank {
			regressed = true
			st.floor = p.Policy.weight(rank)
			if hasScore {
				st.floor = score
			}
		} else if hasScore && score > st.floor {
			st.floor = score
		} else if w := p.Policy.weight(rank); !hasScore && w > st.floor {
			st.floor = w
		}
		st.rank = rank
	} else if hasScore && score > st.floor {
		st.floor = score
	}
	st.stage = p.Policy.Canonical(label)
	if flags, ok := payload["stress_flags"].(map[string]any); ok {
		st.counselorFlags = flags
	}
	if advice := stringField(payload, "advice"); advice != "" {
		st.advice = advice
	}
	return regressed
}

func chronological(in []*agents.AgentReport) []*agents.AgentReport {
	out := make([]*agents.AgentReport, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// latestPerAgent walks newest-first and keeps the first regular report per agent.
func latestPerAgent(chrono []*agents.AgentReport, decoded map[uint]map[string]any) []agentLatest {
	byAgent := map[string]agentLatest{}
	for i := len(chrono) - 1; i >= 0; i-- {
		r := chrono[i]
		payload := decoded[r.ID]
		if IsStageUpdate(r.AgentName, payload) {
			continue
		}
		agent := agents.NormalizeAgentName(r.AgentName)
		if _, ok := byAgent[agent]; ok {
			continue
		}
		byAgent[agent] = agentLatest{agent: agent, report: r, payload: payload}
	}
	out := make([]agentLatest, 0, len(byAgent))
	for _, l := range byAgent {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].agent < out[j].agent })
	return out
}

func activeSince(prev *agents.AdmissionsSummary, watermark *time.Time) *time.Time {
	if prev == nil {
		return nil
	}
	if watermark == nil {
		return copyTime(prev.ActiveSince)
	}
	if prev.ReportWatermark == nil {
		return nil
	}
	if watermark.After(*prev.ReportWatermark) {
		return copyTime(prev.ReportWatermark)
	}
	return copyTime(prev.ActiveSince)
}

func activeAgents(chrono []*agents.AgentReport, since *time.Time) []string {
	set := map[string]bool{}
	for _, r := range chrono {
		if since == nil || r.Timestamp.After(*since) {
			set[agents.NormalizeAgentName(r.AgentName)] = true
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stringField(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func numberField(payload map[string]any, key string) (float64, bool) {
	switch t := payload[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
