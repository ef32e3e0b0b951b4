package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

// BaseDeps is shared by every aggregate. Only DB is required.
type BaseDeps struct {
	DB           *gorm.DB
	Log          *logger.Logger
	Runner       TxRunner
	Hooks        Hooks
	Versions     VersionGuard
	WriteTimeout time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		timeout := d.WriteTimeout
		if timeout == 0 {
			timeout = DefaultWriteTimeout
		}
		d.Runner = NewGormTxRunner(d.DB, timeout)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Versions.db == nil {
		d.Versions = NewVersionGuard(d.DB)
	}
	return d
}

// executeWrite runs fn in one transaction and reports the mapped outcome to the hooks.
// The returned error is always nil or a *domainagg.Error.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	err := MapError(op, deps.Runner.InTx(ctx, fn))
	deps.Hooks.AfterWrite(WriteOutcome{Op: op, Code: domainagg.CodeOf(err), Duration: time.Since(start)})
	if err != nil && domainagg.IsCode(err, domainagg.CodeInternal) {
		deps.Log.Error("aggregate write failed", "op", op, "error", err)
	}
	return err
}
