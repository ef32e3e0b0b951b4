package services

import (
	"context"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
)

func tokens(v int64) *int64 { return &v }

func TestLedgerServiceSettleGrantAndStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "ledger@example.com")

	l, created, err := f.ledger.Open(ctx, u.ID, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !created || l.Balance != DefaultInitialGrant {
		t.Fatalf("Open: want created balance=%d got created=%v balance=%d", DefaultInitialGrant, created, l.Balance)
	}

	other := testutil.SeedUserProfile(t, ctx, f.db, "ledger-zero@example.com")
	zero, _, err := f.ledger.Open(ctx, other.ID, tokens(0))
	if err != nil {
		t.Fatalf("Open (zero): %v", err)
	}
	if zero.Balance != 0 || zero.InitialGrant != 0 {
		t.Fatalf("Open (zero): want empty ledger got balance=%d grant=%d", zero.Balance, zero.InitialGrant)
	}

	settled, err := f.ledger.Settle(ctx, SettleInput{UserID: u.ID, Endpoint: "/search_universities", Provider: "openai", TokensUsed: tokens(1500)})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Balance != 8500 || settled.PreviousBalance != 10000 {
		t.Fatalf("Settle: want prev=10000 balance=8500 got prev=%d balance=%d", settled.PreviousBalance, settled.Balance)
	}

	granted, err := f.ledger.Grant(ctx, GrantInput{UserID: u.ID, Tokens: 500, Reason: "support_credit"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if granted.Balance != 9000 || granted.Entry.Provider != types.ProviderSystem || granted.Entry.TokensUsed != -500 {
		t.Fatalf("Grant: unexpected %+v entry=%+v", granted, granted.Entry)
	}

	st, err := f.ledger.Statement(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if st.Balance != 9000 || st.TotalUsed != 1500 || st.TotalCredits != 500 || len(st.Recent) != 2 {
		t.Fatalf("Statement: unexpected %+v", st)
	}

	replayed, err := f.ledger.Replay(ctx, u.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed != 9000 {
		t.Fatalf("Replay: want=9000 got=%d", replayed)
	}
	v, err := f.ledger.Verify(ctx, u.ID)
	if err != nil || !v.OK || v.Entries != 2 {
		t.Fatalf("Verify: want ok with 2 entries got %+v err=%v", v, err)
	}
}

func TestLedgerServiceReserveIsAPureCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "reserve@example.com")
	testutil.SeedLedger(t, ctx, f.db, u.ID, 100)

	ok, err := f.ledger.Reserve(ctx, u.ID, "visa_requirements", 100)
	if err != nil || !ok.Allowed {
		t.Fatalf("Reserve(100): want allowed got %+v err=%v", ok, err)
	}
	denied, err := f.ledger.Reserve(ctx, u.ID, "visa_requirements", 250)
	if !domainagg.IsCode(err, domainagg.CodeInsufficientBalance) {
		t.Fatalf("Reserve(250): want code=%s got err=%v", domainagg.CodeInsufficientBalance, err)
	}
	if denied == nil || denied.Allowed || denied.Balance != 100 {
		t.Fatalf("Reserve(250): unexpected reservation %+v", denied)
	}

	bal, err := f.ledger.Balance(ctx, u.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 100 {
		t.Fatalf("Balance after reserve: want=100 got=%d", bal)
	}
	entries, err := f.usageRepo.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after reserve: want=0 got=%d", len(entries))
	}
}

func TestLedgerServiceUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.ledger.Balance(ctx, 404); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Balance: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
	if _, err := f.ledger.Reserve(ctx, 404, "x", 1); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Reserve: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
}

func TestLedgerServiceRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name string
		run  func() error
	}{
		{"settle without endpoint", func() error {
			_, err := f.ledger.Settle(ctx, SettleInput{UserID: 1, Provider: "openai", TokensUsed: tokens(1)})
			return err
		}},
		{"settle without user", func() error {
			_, err := f.ledger.Settle(ctx, SettleInput{Endpoint: "e", Provider: "openai", TokensUsed: tokens(1)})
			return err
		}},
		{"settle without tokens_used", func() error {
			_, err := f.ledger.Settle(ctx, SettleInput{UserID: 1, Endpoint: "e", Provider: "openai"})
			return err
		}},
		{"grant of zero", func() error {
			_, err := f.ledger.Grant(ctx, GrantInput{UserID: 1, Reason: "promo"})
			return err
		}},
		{"negative estimate", func() error {
			_, err := f.ledger.Reserve(ctx, 1, "e", -5)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("want code=%s got err=%v", domainagg.CodeValidation, err)
			}
		})
	}
}

func TestLedgerServiceVerifyDetectsDivergence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "diverge@example.com")
	other := testutil.SeedUserProfile(t, ctx, f.db, "healthy@example.com")
	testutil.SeedLedger(t, ctx, f.db, u.ID, 1000)
	testutil.SeedLedger(t, ctx, f.db, other.ID, 1000)
	if _, err := f.ledger.Settle(ctx, SettleInput{UserID: u.ID, Endpoint: "e", Provider: "p", TokensUsed: tokens(10)}); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if err := f.db.Exec("UPDATE token_ledger SET balance = ? WHERE user_profile_id = ?", 5, u.ID).Error; err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	v, err := f.ledger.Verify(ctx, u.ID)
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("Verify: want code=%s got err=%v", domainagg.CodeInvariantViolation, err)
	}
	if v == nil || v.Stored != 5 || v.Replayed != 990 {
		t.Fatalf("Verify: unexpected %+v", v)
	}

	all, err := f.ledger.VerifyAll(ctx)
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("VerifyAll: want code=%s got err=%v", domainagg.CodeInvariantViolation, err)
	}
	if len(all) != 2 {
		t.Fatalf("VerifyAll: want 2 results got %d", len(all))
	}
}

func TestLedgerServiceReplayIgnoresEntryTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, f.db, "out-of-order@example.com")
	if _, _, err := f.ledger.Open(ctx, u.ID, tokens(2000)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	// committed in this order, timestamped out of it
	settles := []struct {
		at     time.Time
		tokens int64
	}{
		{base.Add(3 * time.Hour), 700},
		{base.Add(-48 * time.Hour), 250},
		{base, -100},
		{base.Add(-time.Minute), 1400},
	}
	for i, s := range settles {
		if _, err := f.ledger.Settle(ctx, SettleInput{UserID: u.ID, Endpoint: "/essay", Provider: "openai", TokensUsed: tokens(s.tokens), At: s.at}); err != nil {
			t.Fatalf("Settle[%d]: %v", i, err)
		}
	}

	bal, err := f.ledger.Balance(ctx, u.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != -250 {
		t.Fatalf("Balance: want=-250 got=%d", bal)
	}
	replayed, err := f.ledger.Replay(ctx, u.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed != bal {
		t.Fatalf("Replay: want=%d got=%d", bal, replayed)
	}
	v, err := f.ledger.Verify(ctx, u.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.OK || v.Entries != 4 {
		t.Fatalf("Verify: want ok over 4 entries got %+v", v)
	}
}
