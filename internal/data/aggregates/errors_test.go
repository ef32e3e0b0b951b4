package aggregates

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"gorm.io/gorm"
)

func TestMapErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"invariant", InvariantError("balance went negative"), domainagg.CodeInvariantViolation},
		{"conflict", ConflictError("stale"), domainagg.CodeConflict},
		{"not found sentinel", NotFoundError("user 7 not found"), domainagg.CodeNotFound},
		{"gorm not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"insufficient", InsufficientBalanceError("balance 10 < 50"), domainagg.CodeInsufficientBalance},
		{"stale", StaleDataError("refetch failed"), domainagg.CodeStaleData},
		{"bad conn", driver.ErrBadConn, domainagg.CodeRetryable},
		{"deadline wrapped", fmt.Errorf("settle: %w", context.DeadlineExceeded), domainagg.CodeRetryable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg fk", &pgconn.PgError{Code: "23503"}, domainagg.CodeNotFound},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{"sqlite unique", errors.New("UNIQUE constraint failed: token_ledger.user_profile_id"), domainagg.CodeConflict},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), domainagg.CodeNotFound},
		{"sqlite locked", errors.New("database is locked"), domainagg.CodeRetryable},
		{"unknown", errors.New("no such table: widgets"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		if got := domainagg.CodeOf(MapError("op", tc.err)); got != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got)
		}
	}
}

func TestMapErrorKeepsExistingCode(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("passthrough: want same error got %v", out)
	}
	wrapped := fmt.Errorf("outer: %w", domainagg.NewError(domainagg.CodeStaleData, "refetch", "expired", nil))
	if got := domainagg.CodeOf(MapError("other", wrapped)); got != domainagg.CodeStaleData {
		t.Fatalf("wrapped passthrough: want=%s got=%s", domainagg.CodeStaleData, got)
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil: want nil")
	}
}
