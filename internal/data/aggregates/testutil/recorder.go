package testutil

import (
	"sync"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
)

// OutcomeRecorder collects aggregate write outcomes.
type OutcomeRecorder struct {
	mu       sync.Mutex
	outcomes []aggregates.WriteOutcome
}

var _ aggregates.Hooks = (*OutcomeRecorder)(nil)

func (r *OutcomeRecorder) AfterWrite(o aggregates.WriteOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *OutcomeRecorder) Outcomes() []aggregates.WriteOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]aggregates.WriteOutcome(nil), r.outcomes...)
}

// Count returns how many writes ended with code; an empty code counts successes.
func (r *OutcomeRecorder) Count(code domainagg.ErrorCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Code == code {
			n++
		}
	}
	return n
}
