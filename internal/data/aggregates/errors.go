package aggregates

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"gorm.io/gorm"
)

// Sentinels raised inside a write transaction. MapError turns them into coded errors
// once the transaction has finished.
var (
	ErrValidation          = errors.New("aggregate validation")
	ErrInvariant           = errors.New("aggregate invariant violation")
	ErrConflict            = errors.New("aggregate conflict")
	ErrRetryable           = errors.New("aggregate retryable")
	ErrNotFound            = errors.New("aggregate not found")
	ErrInsufficientBalance = errors.New("aggregate insufficient balance")
	// ErrStaleData: cached reference data is past its horizon and the refetch failed.
	ErrStaleData = errors.New("aggregate stale data")
)

func tagged(sentinel error, msg string) error {
	return errors.Join(sentinel, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error          { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error           { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error            { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error           { return tagged(ErrRetryable, msg) }
func NotFoundError(msg string) error            { return tagged(ErrNotFound, msg) }
func InsufficientBalanceError(msg string) error { return tagged(ErrInsufficientBalance, msg) }
func StaleDataError(msg string) error           { return tagged(ErrStaleData, msg) }

var sentinelCodes = []struct {
	err  error
	code domainagg.ErrorCode
}{
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{ErrNotFound, domainagg.CodeNotFound},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{ErrInsufficientBalance, domainagg.CodeInsufficientBalance},
	{ErrStaleData, domainagg.CodeStaleData},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
	{driver.ErrBadConn, domainagg.CodeRetryable},
}

// SQLSTATE classes that carry meaning for a ledger write.
var pgStateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,  // unique_violation
	"23503": domainagg.CodeNotFound,  // foreign_key_violation, the owning profile is gone
	"40001": domainagg.CodeRetryable, // serialization_failure
	"40P01": domainagg.CodeRetryable, // deadlock_detected
	"55P03": domainagg.CodeRetryable, // lock_not_available
}

// SQLite only reports constraint and locking failures as text.
var messageCodes = []struct {
	fragment string
	code     domainagg.ErrorCode
}{
	{"unique constraint failed", domainagg.CodeConflict},
	{"duplicate key", domainagg.CodeConflict},
	{"already exists", domainagg.CodeConflict},
	{"foreign key constraint failed", domainagg.CodeNotFound},
	{"database is locked", domainagg.CodeRetryable},
	{"deadlock", domainagg.CodeRetryable},
	{"serialization", domainagg.CodeRetryable},
	{"timeout", domainagg.CodeRetryable},
	{"temporar", domainagg.CodeRetryable},
}

// MapError classifies err for op. Errors that already carry a code pass through
// untouched; anything unrecognised becomes CodeInternal.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domainagg.Error
	if errors.As(err, &coded) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgStateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messageCodes {
		if strings.Contains(msg, m.fragment) {
			return m.code
		}
	}
	return domainagg.CodeInternal
}
