package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

const (
	DefaultInitialGrant   int64 = 10000
	DefaultStatementLimit       = 10
)

// SettleInput records actual usage. TokensUsed must be sent; a negative value is a
// provider refund.
type SettleInput struct {
	UserID     uint      `json:"user_id" validate:"required"`
	Endpoint   string    `json:"endpoint" validate:"required,max=255"`
	Provider   string    `json:"provider" validate:"required,max=64"`
	TokensUsed *int64    `json:"tokens_used" validate:"required"`
	At         time.Time `json:"timestamp"`
}

type GrantInput struct {
	UserID uint   `json:"user_id" validate:"required"`
	Tokens int64  `json:"tokens" validate:"gt=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// Reservation is the outcome of a pure balance check.
type Reservation struct {
	UserID        uint   `json:"user_id"`
	Endpoint      string `json:"endpoint,omitempty"`
	EstimatedCost int64  `json:"estimated_cost"`
	Balance       int64  `json:"balance"`
	Allowed       bool   `json:"allowed"`
}

type Settlement struct {
	Entry           *types.UsageEntry `json:"entry"`
	PreviousBalance int64             `json:"previous_balance"`
	Balance         int64             `json:"balance"`
}

type Statement struct {
	UserID       uint                `json:"user_id"`
	InitialGrant int64               `json:"initial_grant"`
	Balance      int64               `json:"balance"`
	TotalUsed    int64               `json:"total_tokens_used"`
	TotalCredits int64               `json:"total_credits"`
	Recent       []*types.UsageEntry `json:"recent_usage"`
}

// Verification compares the stored balance with a replay of the usage log.
type Verification struct {
	UserID   uint  `json:"user_id"`
	Stored   int64 `json:"stored_balance"`
	Replayed int64 `json:"replayed_balance"`
	Entries  int   `json:"entries"`
	OK       bool  `json:"ok"`
}

type LedgerService interface {
	// Open uses the configured default grant when initialGrant is nil. An explicit zero
	// opens an empty ledger.
	Open(ctx context.Context, userID uint, initialGrant *int64) (*types.TokenLedger, bool, error)
	// Reserve never mutates state. A denied reservation returns the Reservation together
	// with a CodeInsufficientBalance error so callers can still inspect the balance.
	Reserve(ctx context.Context, userID uint, endpoint string, estimatedCost int64) (*Reservation, error)
	Settle(ctx context.Context, in SettleInput) (*Settlement, error)
	Grant(ctx context.Context, in GrantInput) (*Settlement, error)
	Balance(ctx context.Context, userID uint) (int64, error)
	Statement(ctx context.Context, userID uint, limit int) (*Statement, error)
	Replay(ctx context.Context, userID uint) (int64, error)
	Verify(ctx context.Context, userID uint) (*Verification, error)
	VerifyAll(ctx context.Context) ([]*Verification, error)
}

type ledgerService struct {
	log          *logger.Logger
	ledgers      repos.TokenLedgerRepo
	usage        repos.UsageEntryRepo
	agg          domainagg.LedgerAggregate
	metrics      *observability.Metrics
	initialGrant int64
}

func NewLedgerService(
	log *logger.Logger,
	ledgers repos.TokenLedgerRepo,
	usage repos.UsageEntryRepo,
	agg domainagg.LedgerAggregate,
	metrics *observability.Metrics,
	initialGrant int64,
) LedgerService {
	if initialGrant < 0 {
		initialGrant = DefaultInitialGrant
	}
	return &ledgerService{
		log:          log.With("service", "LedgerService"),
		ledgers:      ledgers,
		usage:        usage,
		agg:          agg,
		metrics:      metrics,
		initialGrant: initialGrant,
	}
}

func (s *ledgerService) Open(ctx context.Context, userID uint, initialGrant *int64) (*types.TokenLedger, bool, error) {
	grant := s.initialGrant
	if initialGrant != nil {
		grant = *initialGrant
	}
	res, err := s.agg.Open(ctx, domainagg.OpenLedgerInput{UserID: userID, InitialGrant: grant})
	if err != nil {
		return nil, false, err
	}
	if res.Created {
		s.log.Info("ledger opened", "user_id", userID, "initial_grant", res.Ledger.InitialGrant)
	}
	return res.Ledger, res.Created, nil
}

func (s *ledgerService) Reserve(ctx context.Context, userID uint, endpoint string, estimatedCost int64) (*Reservation, error) {
	const op = "LedgerService.Reserve"
	if estimatedCost < 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("estimated_cost must be >= 0"))
	}
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := &Reservation{
		UserID:        userID,
		Endpoint:      endpoint,
		EstimatedCost: estimatedCost,
		Balance:       bal,
		Allowed:       bal >= estimatedCost,
	}
	if !r.Allowed {
		return r, aggregates.MapError(op, aggregates.InsufficientBalanceError(
			fmt.Sprintf("balance %d is below estimated cost %d", bal, estimatedCost)))
	}
	return r, nil
}

func (s *ledgerService) Settle(ctx context.Context, in SettleInput) (*Settlement, error) {
	const op = "LedgerService.Settle"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int64("user_id", int64(in.UserID)),
		attribute.String("endpoint", in.Endpoint),
		attribute.Int64("tokens_used", *in.TokensUsed),
	)
	defer span.End()

	res, err := s.agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID:     in.UserID,
		Endpoint:   in.Endpoint,
		Provider:   in.Provider,
		TokensUsed: *in.TokensUsed,
		At:         in.At,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveSettlement(res.Entry.Endpoint, res.Entry.Provider, res.Entry.TokensUsed)
	return &Settlement{Entry: res.Entry, PreviousBalance: res.PreviousBalance, Balance: res.Balance}, nil
}

func (s *ledgerService) Grant(ctx context.Context, in GrantInput) (*Settlement, error) {
	const op = "LedgerService.Grant"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	credit := -in.Tokens
	out, err := s.Settle(ctx, SettleInput{
		UserID:     in.UserID,
		Endpoint:   in.Reason,
		Provider:   types.ProviderSystem,
		TokensUsed: &credit,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncGrant()
	s.log.Info("tokens granted", "user_id", in.UserID, "tokens", in.Tokens, "reason", in.Reason, "balance", out.Balance)
	return out, nil
}

func (s *ledgerService) Balance(ctx context.Context, userID uint) (int64, error) {
	l, err := s.getLedger(ctx, "LedgerService.Balance", userID)
	if err != nil {
		return 0, err
	}
	return l.Balance, nil
}

func (s *ledgerService) Statement(ctx context.Context, userID uint, limit int) (*Statement, error) {
	const op = "LedgerService.Statement"
	if limit <= 0 {
		limit = DefaultStatementLimit
	}
	l, err := s.getLedger(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.usage.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	out := &Statement{UserID: userID, InitialGrant: l.InitialGrant, Balance: l.Balance}
	for _, e := range entries {
		if e.TokensUsed > 0 {
			out.TotalUsed += e.TokensUsed
		} else {
			out.TotalCredits -= e.TokensUsed
		}
	}
	recent, err := s.usage.ListRecentByUser(ctx, nil, userID, limit)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	out.Recent = recent
	return out, nil
}

func (s *ledgerService) Replay(ctx context.Context, userID uint) (int64, error) {
	v, err := s.replay(ctx, "LedgerService.Replay", userID)
	if err != nil {
		return 0, err
	}
	return v.Replayed, nil
}

func (s *ledgerService) Verify(ctx context.Context, userID uint) (*Verification, error) {
	const op = "LedgerService.Verify"
	v, err := s.replay(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	if !v.OK {
		s.log.Error("ledger diverged from usage log", "user_id", userID, "stored", v.Stored, "replayed", v.Replayed)
		return v, aggregates.MapError(op, aggregates.InvariantError(
			fmt.Sprintf("stored balance %d != replayed %d", v.Stored, v.Replayed)))
	}
	return v, nil
}

// VerifyAll checks every ledger and returns all results; the error reports how many diverged.
func (s *ledgerService) VerifyAll(ctx context.Context) ([]*Verification, error) {
	const op = "LedgerService.VerifyAll"
	ids, err := s.ledgers.ListUserIDs(ctx, nil)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	out := make([]*Verification, 0, len(ids))
	bad := 0
	for _, id := range ids {
		v, err := s.Verify(ctx, id)
		if v != nil {
			out = append(out, v)
		}
		if err != nil {
			if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
				return out, err
			}
			bad++
		}
	}
	if bad > 0 {
		return out, aggregates.MapError(op, aggregates.InvariantError(
			fmt.Sprintf("%d of %d ledgers diverged", bad, len(out))))
	}
	return out, nil
}

// replay folds the usage log in timestamp order starting from the initial grant.
func (s *ledgerService) replay(ctx context.Context, op string, userID uint) (*Verification, error) {
	l, err := s.getLedger(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.usage.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	bal := l.InitialGrant
	for _, e := range entries {
		bal -= e.TokensUsed
	}
	return &Verification{
		UserID:   userID,
		Stored:   l.Balance,
		Replayed: bal,
		Entries:  len(entries),
		OK:       bal == l.Balance,
	}, nil
}

func (s *ledgerService) getLedger(ctx context.Context, op string, userID uint) (*types.TokenLedger, error) {
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	l, err := s.ledgers.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, aggregates.MapError(op, aggregates.NotFoundError(fmt.Sprintf("no ledger for user %d", userID)))
		}
		return nil, aggregates.MapError(op, err)
	}
	return l, nil
}
