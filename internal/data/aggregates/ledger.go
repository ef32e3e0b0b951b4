package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"gorm.io/gorm"
)

type LedgerAggregateDeps struct {
	Base BaseDeps

	Profiles repos.UserProfileRepo
	Ledgers  repos.TokenLedgerRepo
	Usage    repos.UsageEntryRepo
}

type ledgerAggregate struct {
	deps LedgerAggregateDeps
}

func NewLedgerAggregate(deps LedgerAggregateDeps) domainagg.LedgerAggregate {
	deps.Base = deps.Base.withDefaults()
	return &ledgerAggregate{deps: deps}
}

func (a *ledgerAggregate) Contract() domainagg.Contract {
	return domainagg.LedgerAggregateContract
}

func (a *ledgerAggregate) Open(ctx context.Context, in domainagg.OpenLedgerInput) (domainagg.OpenLedgerResult, error) {
	const op = "Accounting.Ledger.Open"
	var out domainagg.OpenLedgerResult
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.InitialGrant < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "initial_grant must be >= 0", nil)
	}
	if a.deps.Profiles == nil || a.deps.Ledgers == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ledger aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exists, err := a.deps.Profiles.Exists(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundError(fmt.Sprintf("user %d not found", in.UserID))
		}
		created, err := a.deps.Ledgers.CreateIfAbsent(dbc.Ctx, dbc.Tx, &types.TokenLedger{
			UserProfileID: in.UserID,
			InitialGrant:  in.InitialGrant,
			Balance:       in.InitialGrant,
		})
		if err != nil {
			return err
		}
		l, err := a.deps.Ledgers.GetByUserID(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		out.Ledger = l
		out.Created = created
		return nil
	})
	return out, err
}

func (a *ledgerAggregate) Settle(ctx context.Context, in domainagg.SettleUsageInput) (domainagg.SettleUsageResult, error) {
	const op = "Accounting.Ledger.Settle"
	var out domainagg.SettleUsageResult
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	endpoint := strings.TrimSpace(in.Endpoint)
	provider := strings.TrimSpace(in.Provider)
	if endpoint == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing endpoint", nil)
	}
	if provider == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing provider", nil)
	}
	if a.deps.Ledgers == nil || a.deps.Usage == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ledger aggregate repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.deps.Ledgers.GetByUserID(dbc.Ctx, dbc.Tx, in.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError(fmt.Sprintf("no ledger for user %d", in.UserID))
			}
			return err
		}
		entry, err := a.deps.Usage.Create(dbc.Ctx, dbc.Tx, &types.UsageEntry{
			UserProfileID: in.UserID,
			Endpoint:      endpoint,
			Provider:      provider,
			TokensUsed:    in.TokensUsed,
			Timestamp:     at,
		})
		if err != nil {
			return err
		}
		if err := a.deps.Ledgers.ApplyDelta(dbc.Ctx, dbc.Tx, in.UserID, in.TokensUsed); err != nil {
			return err
		}
		after, err := a.deps.Ledgers.GetByUserID(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		out.Entry = entry
		out.Balance = after.Balance
		out.PreviousBalance = after.Balance + in.TokensUsed
		return nil
	})
	if err != nil {
		return domainagg.SettleUsageResult{}, err
	}
	a.deps.Base.Log.Info("usage settled",
		"user_id", in.UserID,
		"endpoint", endpoint,
		"provider", provider,
		"tokens_used", in.TokensUsed,
		"balance", out.Balance,
	)
	return out, nil
}
