package observability

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" x-api-key = abc ,broken, =nokey,tenant=admissions")
	if len(got) != 2 || got["x-api-key"] != "abc" || got["tenant"] != "admissions" {
		t.Fatalf("parseHeaders: unexpected %v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("parseHeaders(empty): want nil")
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v): want=%v got=%v", in, want, got)
		}
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	if shutdown := InitTracing(context.Background(), nil, TracingConfig{}); shutdown != nil {
		t.Fatalf("disabled tracing: want nil shutdown")
	}
	_, span := StartSpan(context.Background(), "ledger.settle")
	span.End()
}
