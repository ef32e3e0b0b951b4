package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/policy"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

type fixture struct {
	db      *gorm.DB
	log     *logger.Logger
	bus     *bus.MemoryBus
	metrics *observability.Metrics

	profileRepo repos.UserProfileRepo
	changeRepo  repos.ProfileChangeRepo
	ledgerRepo  repos.TokenLedgerRepo
	usageRepo   repos.UsageEntryRepo
	reportRepo  repos.AgentReportRepo
	summaryRepo repos.AdmissionsSummaryRepo
	summaryAgg  domainagg.SummaryAggregate

	ledger    LedgerService
	summaries SummaryService
	reports   ReportService
	profiles  ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:          db,
		log:         log,
		bus:         bus.NewMemoryBus(log),
		metrics:     observability.NewMetrics(prometheus.NewRegistry()),
		profileRepo: repos.NewUserProfileRepo(db, log),
		changeRepo:  repos.NewProfileChangeRepo(db, log),
		ledgerRepo:  repos.NewTokenLedgerRepo(db, log),
		usageRepo:   repos.NewUsageEntryRepo(db, log),
		reportRepo:  repos.NewAgentReportRepo(db, log),
		summaryRepo: repos.NewAdmissionsSummaryRepo(db, log),
	}
	t.Cleanup(func() { _ = f.bus.Close() })
	conflictRepo := repos.NewReportConflictRepo(db, log)
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: aggregates.NewObservabilityHooks(f.metrics)}

	ledgerAgg := aggregates.NewLedgerAggregate(aggregates.LedgerAggregateDeps{
		Base: base, Profiles: f.profileRepo, Ledgers: f.ledgerRepo, Usage: f.usageRepo,
	})
	reportAgg := aggregates.NewReportAggregate(aggregates.ReportAggregateDeps{
		Base: base, Profiles: f.profileRepo, Reports: f.reportRepo, Conflicts: conflictRepo,
	})
	summaryAgg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base: base, Profiles: f.profileRepo, Reports: f.reportRepo, Changes: f.changeRepo, Summaries: f.summaryRepo,
		Conflicts: conflictRepo,
	})
	f.summaryAgg = summaryAgg
	profileAgg := aggregates.NewProfileAggregate(aggregates.ProfileAggregateDeps{
		Base: base, Profiles: f.profileRepo, Changes: f.changeRepo,
	})
	pol := StaticPolicy(policy.Default())

	f.ledger = NewLedgerService(log, f.ledgerRepo, f.usageRepo, ledgerAgg, f.metrics, DefaultInitialGrant)
	f.summaries = NewSummaryService(log, SummaryServiceDeps{
		Reports:   f.reportRepo,
		Changes:   f.changeRepo,
		Summaries: f.summaryRepo,
		Aggregate: summaryAgg,
		Policy:    pol,
		Metrics:   f.metrics,
		Bus:       f.bus,
	})
	f.reports = NewReportService(log, ReportServiceDeps{
		Reports:   f.reportRepo,
		Conflicts: conflictRepo,
		Aggregate: reportAgg,
		Summaries: f.summaries,
		Policy:    pol,
		Metrics:   f.metrics,
		Bus:       f.bus,
	})
	f.profiles = NewProfileService(log, f.profileRepo, f.changeRepo, profileAgg, f.summaries)
	return f
}

// subscribe collects bus events for the rest of the test.
func (f *fixture) subscribe(t *testing.T) <-chan realtime.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := make(chan realtime.Event, 128)
	if err := f.bus.StartForwarder(ctx, func(evt realtime.Event) { ch <- evt }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	return ch
}

// waitForEvent drains ch until an event of type want arrives.
func waitForEvent(t *testing.T, ch <-chan realtime.Event, want realtime.EventType) realtime.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return realtime.Event{}
		}
	}
}
