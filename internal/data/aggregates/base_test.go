package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
)

type directRunner struct{}

func (directRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

func TestExecuteWriteReportsOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"success", nil, ""},
		{"invariant", InvariantError("balance drifted"), domainagg.CodeInvariantViolation},
		{"conflict", ConflictError("stale version"), domainagg.CodeConflict},
		{"retryable", RetryableError("lock timeout"), domainagg.CodeRetryable},
		{"deadline", context.DeadlineExceeded, domainagg.CodeRetryable},
		{"unknown", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []WriteOutcome
			hooks := HooksFunc(func(o WriteOutcome) { got = append(got, o) })
			err := executeWrite(context.Background(), BaseDeps{Runner: directRunner{}, Hooks: hooks}, "ledger.test", func(dbctx.Context) error {
				return tc.err
			})
			if code := domainagg.CodeOf(err); code != tc.want {
				t.Fatalf("code: want=%q got=%q (err=%v)", tc.want, code, err)
			}
			if len(got) != 1 {
				t.Fatalf("outcomes: want=1 got=%d", len(got))
			}
			if got[0].Op != "ledger.test" || got[0].Code != tc.want {
				t.Fatalf("outcome: unexpected %+v", got[0])
			}
			wantStatus := "success"
			if tc.want != "" {
				wantStatus = string(tc.want)
			}
			if got[0].Status() != wantStatus {
				t.Fatalf("status: want=%s got=%s", wantStatus, got[0].Status())
			}
		})
	}
}

func TestExecuteWriteDefaultsOpName(t *testing.T) {
	var op string
	hooks := HooksFunc(func(o WriteOutcome) { op = o.Op })
	if err := executeWrite(context.Background(), BaseDeps{Runner: directRunner{}, Hooks: hooks}, "  ", func(dbctx.Context) error { return nil }); err != nil {
		t.Fatalf("executeWrite: %v", err)
	}
	if op != "aggregate.write" {
		t.Fatalf("op: want=aggregate.write got=%q", op)
	}
}

func TestGormTxRunnerWithoutDB(t *testing.T) {
	err := NewGormTxRunner(nil, 0).InTx(context.Background(), func(dbctx.Context) error { return nil })
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("nil db: want code=%s got err=%v", domainagg.CodeInternal, err)
	}
}

func TestGormTxRunnerCancelledContextIsRetryable(t *testing.T) {
	db := testutil.SQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := executeWrite(ctx, BaseDeps{DB: db}, "ledger.cancelled", func(dbctx.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("body should not run on a cancelled context")
	}
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("cancelled: want code=%s got err=%v", domainagg.CodeRetryable, err)
	}
}

func TestGormTxRunnerRollsBackOnError(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	err := executeWrite(ctx, BaseDeps{DB: db}, "profile.rollback", func(dbc dbctx.Context) error {
		if err := dbc.Tx.Create(&user.UserProfile{Email: "rollback@example.com", FullName: "Rolled Back"}).Error; err != nil {
			return err
		}
		return ValidationError("reject after insert")
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("rollback: want code=%s got err=%v", domainagg.CodeValidation, err)
	}
	var n int64
	if err := db.Model(&user.UserProfile{}).Where("email = ?", "rollback@example.com").Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows after rollback: want=0 got=%d", n)
	}
}
