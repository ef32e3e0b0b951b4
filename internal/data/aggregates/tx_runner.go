package aggregates

import (
	"context"
	"time"

	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"gorm.io/gorm"
)

// DefaultWriteTimeout bounds a single aggregate transaction. An expired deadline maps to
// CodeRetryable and is returned to the caller as is.
const DefaultWriteTimeout = 5 * time.Second

// TxRunner opens the transaction an aggregate write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormTxRunner runs writes in GORM transactions. A non-positive timeout leaves the
// caller's deadline as the only bound.
func NewGormTxRunner(db *gorm.DB, timeout time.Duration) TxRunner {
	return &gormTxRunner{db: db, timeout: timeout}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has no database", nil)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
