package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
)

func TestOutcomeRecorderCounts(t *testing.T) {
	r := &OutcomeRecorder{}
	r.AfterWrite(aggregates.WriteOutcome{Op: "ledger.settle", Duration: time.Millisecond})
	r.AfterWrite(aggregates.WriteOutcome{Op: "ledger.settle", Code: domainagg.CodeConflict})
	r.AfterWrite(aggregates.WriteOutcome{Op: "summary.recompute"})

	if got := len(r.Outcomes()); got != 3 {
		t.Fatalf("outcomes: want=3 got=%d", got)
	}
	if got := r.Count(""); got != 2 {
		t.Fatalf("successes: want=2 got=%d", got)
	}
	if got := r.Count(domainagg.CodeConflict); got != 1 {
		t.Fatalf("conflicts: want=1 got=%d", got)
	}
}

func TestFaultRunner(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name        string
		runner      *FaultRunner
		body        error
		wantErr     error
		wantRan     bool
		wantCommits int
	}{
		{"commits", &FaultRunner{}, nil, nil, true, 1},
		{"begin fails", &FaultRunner{FailBegin: boom}, nil, boom, false, 0},
		{"body fails", &FaultRunner{}, boom, boom, true, 0},
		{"commit fails", &FaultRunner{FailCommit: boom}, nil, boom, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ran := false
			err := tc.runner.InTx(context.Background(), func(dbctx.Context) error {
				ran = true
				return tc.body
			})
			if !errors.Is(err, tc.wantErr) || (tc.wantErr == nil && err != nil) {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if ran != tc.wantRan {
				t.Fatalf("body ran: want=%v got=%v", tc.wantRan, ran)
			}
			begins, commits := tc.runner.Calls()
			if begins != 1 || commits != tc.wantCommits {
				t.Fatalf("calls: want begins=1 commits=%d got begins=%d commits=%d", tc.wantCommits, begins, commits)
			}
		})
	}
}
