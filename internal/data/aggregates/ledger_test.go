package aggregates_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	aggtestutil "github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates/testutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db     *gorm.DB
	agg    domainagg.LedgerAggregate
	usage  repos.UsageEntryRepo
	ledger repos.TokenLedgerRepo
	hooks  *aggtestutil.OutcomeRecorder
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	hooks := &aggtestutil.OutcomeRecorder{}
	f := ledgerFixture{
		db:     db,
		usage:  repos.NewUsageEntryRepo(db, log),
		ledger: repos.NewTokenLedgerRepo(db, log),
		hooks:  hooks,
	}
	f.agg = aggregates.NewLedgerAggregate(aggregates.LedgerAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks},
		Profiles: repos.NewUserProfileRepo(db, log),
		Ledgers:  f.ledger,
		Usage:    f.usage,
	})
	return f
}

func TestLedgerAggregateOpenIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "open@example.com")

	first, err := f.agg.Open(ctx, domainagg.OpenLedgerInput{UserID: u.ID, InitialGrant: 10000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !first.Created || first.Ledger.Balance != 10000 {
		t.Fatalf("Open: want created balance=10000 got created=%v balance=%d", first.Created, first.Ledger.Balance)
	}

	again, err := f.agg.Open(ctx, domainagg.OpenLedgerInput{UserID: u.ID, InitialGrant: 50})
	if err != nil {
		t.Fatalf("Open (again): %v", err)
	}
	if again.Created {
		t.Fatalf("Open (again): expected created=false")
	}
	if again.Ledger.InitialGrant != 10000 || again.Ledger.Balance != 10000 {
		t.Fatalf("Open (again): want grant=10000 got grant=%d balance=%d", again.Ledger.InitialGrant, again.Ledger.Balance)
	}
}

func TestLedgerAggregateOpenUnknownUser(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.agg.Open(context.Background(), domainagg.OpenLedgerInput{UserID: 999, InitialGrant: 10})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Open: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
}

func TestLedgerAggregateSettle(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "settle@example.com")
	testutil.SeedLedger(t, ctx, f.db, u.ID, 10000)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := f.agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "university_search", Provider: "openai", TokensUsed: 1500, At: at,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.PreviousBalance != 10000 || res.Balance != 8500 {
		t.Fatalf("Settle: want prev=10000 balance=8500 got prev=%d balance=%d", res.PreviousBalance, res.Balance)
	}
	if res.Entry == nil || res.Entry.ID == 0 || !res.Entry.Timestamp.Equal(at) {
		t.Fatalf("Settle: unexpected entry %+v", res.Entry)
	}

	// zero-cost calls are still recorded
	zero, err := f.agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "cached_lookup", Provider: "cache", TokensUsed: 0,
	})
	if err != nil {
		t.Fatalf("Settle (zero): %v", err)
	}
	if zero.Balance != 8500 {
		t.Fatalf("Settle (zero): want balance=8500 got %d", zero.Balance)
	}
	entries, err := f.usage.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListByUser: want=2 got=%d", len(entries))
	}
}

func TestLedgerAggregateSettleAllowsNegativeBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "negative@example.com")
	testutil.SeedLedger(t, ctx, f.db, u.ID, 100)

	res, err := f.agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "visa_requirements", Provider: "openai", TokensUsed: 250,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.Balance != -150 {
		t.Fatalf("Settle: want balance=-150 got %d", res.Balance)
	}
}

func TestLedgerAggregateConcurrentSettlesLoseNothing(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "concurrent@example.com")
	testutil.SeedLedger(t, ctx, f.db, u.ID, 10000)

	amounts := []int64{1500, 9000}
	var wg sync.WaitGroup
	errs := make(chan error, len(amounts))
	for _, amt := range amounts {
		wg.Add(1)
		go func(amt int64) {
			defer wg.Done()
			_, err := f.agg.Settle(ctx, domainagg.SettleUsageInput{
				UserID: u.ID, Endpoint: "scholarship_search", Provider: "anthropic", TokensUsed: amt,
			})
			errs <- err
		}(amt)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}

	l, err := f.ledger.GetByUserID(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if l.Balance != -500 {
		t.Fatalf("balance: want=-500 got=%d", l.Balance)
	}
	entries, err := f.usage.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	var sum int64
	for _, e := range entries {
		sum += e.TokensUsed
	}
	if l.InitialGrant-sum != l.Balance {
		t.Fatalf("replay: want=%d got=%d", l.Balance, l.InitialGrant-sum)
	}
}

func TestLedgerAggregateSettleWithoutLedger(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "noledger@example.com")

	_, err := f.agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "university_search", Provider: "openai", TokensUsed: 10,
	})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Settle: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
	entries, err := f.usage.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after failed settle: want=0 got=%d", len(entries))
	}
	if outcomes := f.hooks.Outcomes(); len(outcomes) != 1 || outcomes[0].Status() != string(domainagg.CodeNotFound) {
		t.Fatalf("hooks: unexpected outcomes %+v", outcomes)
	}
}

func TestLedgerAggregateSettleValidation(t *testing.T) {
	f := newLedgerFixture(t)
	cases := []struct {
		name string
		in   domainagg.SettleUsageInput
	}{
		{"missing user", domainagg.SettleUsageInput{Endpoint: "e", Provider: "p", TokensUsed: 1}},
		{"missing endpoint", domainagg.SettleUsageInput{UserID: 1, Provider: "p", TokensUsed: 1}},
		{"missing provider", domainagg.SettleUsageInput{UserID: 1, Endpoint: "e", TokensUsed: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.agg.Settle(context.Background(), tc.in)
			if !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("Settle: want code=%s got err=%v", domainagg.CodeValidation, err)
			}
		})
	}
}

func TestLedgerAggregateSettleBeginFailureIsRetryable(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, db, "rollback@example.com")
	testutil.SeedLedger(t, ctx, db, u.ID, 10000)

	runner := &aggtestutil.FaultRunner{FailBegin: context.DeadlineExceeded}
	agg := aggregates.NewLedgerAggregate(aggregates.LedgerAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log, Runner: runner},
		Profiles: repos.NewUserProfileRepo(db, log),
		Ledgers:  repos.NewTokenLedgerRepo(db, log),
		Usage:    repos.NewUsageEntryRepo(db, log),
	})
	_, err := agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "university_search", Provider: "openai", TokensUsed: 10,
	})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("Settle: want code=%s got err=%v", domainagg.CodeRetryable, err)
	}
	if begins, commits := runner.Calls(); begins != 1 || commits != 0 {
		t.Fatalf("runner: want begin=1 commit=0 got begin=%d commit=%d", begins, commits)
	}
}

func TestLedgerAggregateSettleCommitFailureRollsBack(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, db, "commitfail@example.com")
	testutil.SeedLedger(t, ctx, db, u.ID, 10000)

	ledgers := repos.NewTokenLedgerRepo(db, log)
	usage := repos.NewUsageEntryRepo(db, log)
	runner := &aggtestutil.FaultRunner{
		Next:       aggregates.NewGormTxRunner(db, 0),
		FailCommit: aggregates.RetryableError("commit lost"),
	}
	agg := aggregates.NewLedgerAggregate(aggregates.LedgerAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log, Runner: runner},
		Profiles: repos.NewUserProfileRepo(db, log),
		Ledgers:  ledgers,
		Usage:    usage,
	})
	_, err := agg.Settle(ctx, domainagg.SettleUsageInput{
		UserID: u.ID, Endpoint: "university_search", Provider: "openai", TokensUsed: 250,
	})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("Settle: want code=%s got err=%v", domainagg.CodeRetryable, err)
	}
	l, err := ledgers.GetByUserID(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if l.Balance != 10000 {
		t.Fatalf("balance after rollback: want=10000 got=%d", l.Balance)
	}
	entries, err := usage.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after rollback: want=0 got=%d", len(entries))
	}
}
