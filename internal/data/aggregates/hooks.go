package aggregates

import (
	"time"

	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
)

// WriteOutcome describes one finished aggregate write. Code is empty on success.
type WriteOutcome struct {
	Op       string
	Code     domainagg.ErrorCode
	Duration time.Duration
}

func (o WriteOutcome) Status() string {
	if o.Code == "" {
		return "success"
	}
	return string(o.Code)
}

// Hooks receives every aggregate write outcome, committed or not.
type Hooks interface {
	AfterWrite(WriteOutcome)
}

// HooksFunc adapts a plain function to Hooks.
type HooksFunc func(WriteOutcome)

func (f HooksFunc) AfterWrite(o WriteOutcome) {
	if f != nil {
		f(o)
	}
}

type noopHooks struct{}

func (noopHooks) AfterWrite(WriteOutcome) {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks feeds write outcomes into the aggregate metrics. Conflicts and
// retryable failures are counted on their own series as well as by status.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) AfterWrite(o WriteOutcome) {
	h.metrics.ObserveAggregateOperation(o.Op, o.Status(), o.Duration)
	switch o.Code {
	case domainagg.CodeConflict:
		h.metrics.IncAggregateConflict(o.Op)
	case domainagg.CodeRetryable:
		h.metrics.IncAggregateRetry(o.Op)
	}
}
