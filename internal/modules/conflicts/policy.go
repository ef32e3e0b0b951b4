// Package conflicts defines which report fields are compared between which agents.
//
// Comparison keys are explicit: a rule names the agents it applies between, the payload
// field it compares and, optionally, scope keys that must match before the field is
// comparable (the same university, the same visa route).
package conflicts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
)

const (
	MatchExact   = "exact"
	MatchNumeric = "numeric"

	AnyAgent = "*"
)

type Rule struct {
	Name       string   `yaml:"name"`
	Agents     []string `yaml:"agents"`
	Field      string   `yaml:"field"`
	Scope      []string `yaml:"scope,omitempty"`
	Match      string   `yaml:"match"`
	Tolerance  float64  `yaml:"tolerance,omitempty"`
	IgnoreZero bool     `yaml:"ignore_zero,omitempty"`
}

type Policy struct {
	WindowDays int    `yaml:"window_days"`
	Rules      []Rule `yaml:"rules"`
}

func (p Policy) Validate() error {
	seen := map[string]bool{}
	for i, r := range p.Rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("conflict rule %d: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("conflict rule %q: duplicate name", name)
		}
		seen[name] = true
		if strings.TrimSpace(r.Field) == "" {
			return fmt.Errorf("conflict rule %q: field is required", name)
		}
		if len(r.Agents) == 0 {
			return fmt.Errorf("conflict rule %q: agents must list at least one agent or %q", name, AnyAgent)
		}
		switch r.Match {
		case "", MatchExact, MatchNumeric:
		default:
			return fmt.Errorf("conflict rule %q: unknown match %q", name, r.Match)
		}
		if r.Tolerance < 0 {
			return fmt.Errorf("conflict rule %q: tolerance must be >= 0", name)
		}
	}
	if p.WindowDays < 0 {
		return fmt.Errorf("window_days must be >= 0")
	}
	return nil
}

// Applies reports whether the rule covers the (a, b) agent pair. Agents are compared
// by canonical name; a pair of the same agent never applies.
func (r Rule) Applies(a, b string) bool {
	a, b = agents.NormalizeAgentName(a), agents.NormalizeAgentName(b)
	if a == b {
		return false
	}
	return r.covers(a) && r.covers(b)
}

func (r Rule) covers(agent string) bool {
	for _, x := range r.Agents {
		if x == AnyAgent || agents.NormalizeAgentName(x) == agent {
			return true
		}
	}
	return false
}

// Compare evaluates every applicable rule against two decoded payloads.
func (p Policy) Compare(newAgent string, newPayload map[string]any, otherAgent string, otherPayload map[string]any) []agents.FieldConflict {
	var out []agents.FieldConflict
	for _, r := range p.Rules {
		if !r.Applies(newAgent, otherAgent) {
			continue
		}
		if !scopeMatches(r.Scope, newPayload, otherPayload) {
			continue
		}
		a, okA := Lookup(newPayload, r.Field)
		b, okB := Lookup(otherPayload, r.Field)
		if !okA || !okB {
			continue
		}
		if !r.disagree(a, b) {
			continue
		}
		out = append(out, agents.FieldConflict{
			Field:      r.Field,
			Value:      render(a),
			OtherValue: render(b),
			Detail: fmt.Sprintf("%s conflict between %s and %s",
				r.Name, agents.NormalizeAgentName(newAgent), agents.NormalizeAgentName(otherAgent)),
		})
	}
	return out
}

// Comparator adapts the policy to the report-level comparison used by the report store.
func (p Policy) Comparator() agents.CompareFunc {
	return func(newReport, other *agents.AgentReport) []agents.FieldConflict {
		if newReport == nil || other == nil {
			return nil
		}
		return p.Compare(newReport.AgentName, DecodePayload(newReport.Payload), other.AgentName, DecodePayload(other.Payload))
	}
}

func (r Rule) disagree(a, b any) bool {
	if r.Match == MatchNumeric {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if !okA || !okB {
			return Normalize(a) != Normalize(b)
		}
		if r.IgnoreZero && (fa <= 0 || fb <= 0) {
			return false
		}
		return math.Abs(fa-fb) > r.Tolerance
	}
	return Normalize(a) != Normalize(b)
}

func scopeMatches(scope []string, a, b map[string]any) bool {
	for _, key := range scope {
		va, okA := Lookup(a, key)
		vb, okB := Lookup(b, key)
		if !okA || !okB {
			return false
		}
		if Normalize(va) != Normalize(vb) {
			return false
		}
	}
	return true
}

// DecodePayload parses a report payload into a map; malformed payloads decode to an empty map.
func DecodePayload(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Lookup resolves a dotted path ("budget.bracket"). Null values count as absent.
func Lookup(payload map[string]any, path string) (any, bool) {
	if payload == nil {
		return nil, false
	}
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	if s, ok := cur.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return cur, true
}

// Normalize produces a comparison key: case and whitespace insensitive for strings,
// numeric for numbers, canonical JSON for composites.
func Normalize(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.Join(strings.Fields(strings.ToLower(t)), " ")
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			parts = append(parts, Normalize(x))
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, strings.ToLower(k)+":"+Normalize(t[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return strings.ToLower(fmt.Sprint(t))
	}
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
