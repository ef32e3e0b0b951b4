package testutil

import (
	"context"
	"sync"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
)

// FaultRunner injects failures around a transaction. With Next set the body runs in a
// real transaction, so a FailCommit error rolls back everything the body wrote.
type FaultRunner struct {
	Next       aggregates.TxRunner
	FailBegin  error
	FailCommit error

	mu      sync.Mutex
	begins  int
	commits int
}

var _ aggregates.TxRunner = (*FaultRunner)(nil)

func (r *FaultRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.begins++
	r.mu.Unlock()
	if r.FailBegin != nil {
		return r.FailBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return r.FailCommit
	}
	var err error
	if r.Next != nil {
		err = r.Next.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err == nil {
		r.mu.Lock()
		r.commits++
		r.mu.Unlock()
	}
	return err
}

// Calls returns how many transactions were begun and how many committed.
func (r *FaultRunner) Calls() (begins, commits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins, r.commits
}
