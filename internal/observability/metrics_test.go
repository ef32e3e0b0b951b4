package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveAggregateOperation("op", "success", time.Millisecond)
	m.ObserveSettlement("e", "p", 10)
	m.IncReportConflict("recommended_budget")
	if m.Registry() != nil {
		t.Fatalf("nil metrics: expected nil registry")
	}
}

func TestObserveSettlementSplitsDirection(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSettlement("university_search", "openai", 1500)
	m.ObserveSettlement("grant", "system", -200)
	m.ObserveSettlement("cached", "openai", 0)

	if got := testutil.ToFloat64(m.tokensSettled.WithLabelValues("openai", "debit")); got != 1500 {
		t.Fatalf("debit: want=1500 got=%v", got)
	}
	if got := testutil.ToFloat64(m.tokensSettled.WithLabelValues("system", "credit")); got != 200 {
		t.Fatalf("credit: want=200 got=%v", got)
	}
	if got := testutil.ToFloat64(m.settlements.WithLabelValues("cached", "openai")); got != 1 {
		t.Fatalf("zero-cost settlement: want=1 got=%v", got)
	}
}

func TestAggregateSignals(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveAggregateOperation("Accounting.Ledger.Settle", "success", 3*time.Millisecond)
	m.IncAggregateConflict("Reconciliation.Summary.Recompute")
	m.IncAggregateRetry("")

	if got := testutil.ToFloat64(m.aggregateOps.WithLabelValues("Accounting.Ledger.Settle", "success")); got != 1 {
		t.Fatalf("ops: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.aggregateConflicts.WithLabelValues("Reconciliation.Summary.Recompute")); got != 1 {
		t.Fatalf("conflicts: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.aggregateRetries.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("retries: want=1 got=%v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncGrant()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "adm_ledger_grants_total 1") {
		t.Fatalf("body: missing grants counter")
	}
}
