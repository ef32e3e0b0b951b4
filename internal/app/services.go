package app

import (
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/freshness"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type Services struct {
	Ledger    services.LedgerService
	Reports   services.ReportService
	Summaries services.SummaryService
	Profiles  services.ProfileService
	Reference services.ReferenceService
	AgentAuth services.AgentAuthService
	Runner    *services.AgentRunner
	Watcher   *services.ProfileChangeWatcher
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos, policy services.PolicySource, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	base := aggregates.BaseDeps{DB: clients.DB, Log: log, Hooks: aggregates.NewObservabilityHooks(metrics)}
	ledgerAgg := aggregates.NewLedgerAggregate(aggregates.LedgerAggregateDeps{
		Base: base, Profiles: reposet.Profile, Ledgers: reposet.Ledger, Usage: reposet.Usage,
	})
	reportAgg := aggregates.NewReportAggregate(aggregates.ReportAggregateDeps{
		Base: base, Profiles: reposet.Profile, Reports: reposet.Report, Conflicts: reposet.Conflict,
	})
	summaryAgg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base: base, Profiles: reposet.Profile, Reports: reposet.Report, Changes: reposet.Change, Summaries: reposet.Summary,
		Conflicts: reposet.Conflict,
	})
	profileAgg := aggregates.NewProfileAggregate(aggregates.ProfileAggregateDeps{
		Base: base, Profiles: reposet.Profile, Changes: reposet.Change,
	})

	ledger := services.NewLedgerService(log, reposet.Ledger, reposet.Usage, ledgerAgg, metrics, cfg.InitialGrant)
	summaries := services.NewSummaryService(log, services.SummaryServiceDeps{
		Reports:   reposet.Report,
		Changes:   reposet.Change,
		Summaries: reposet.Summary,
		Aggregate: summaryAgg,
		Policy:    policy,
		Metrics:   metrics,
		Bus:       clients.Bus,
	})
	reports := services.NewReportService(log, services.ReportServiceDeps{
		Reports:   reposet.Report,
		Conflicts: reposet.Conflict,
		Aggregate: reportAgg,
		Summaries: summaries,
		Policy:    policy,
		Window:    cfg.ConflictWindow,
		Metrics:   metrics,
		Bus:       clients.Bus,
	})
	profiles := services.NewProfileService(log, reposet.Profile, reposet.Change, profileAgg, summaries)

	refetcher := services.BusRefetcher{Bus: clients.Bus}
	reference := services.NewReferenceService(log, services.ReferenceServiceDeps{
		Requirements: reposet.Requirements,
		Visas:        reposet.Visa,
		ReqFetcher:   refetcher,
		VisaFetcher:  refetcher,
		Freshness:    freshness.Policy{HorizonDays: cfg.FreshnessHorizonDays},
		Metrics:      metrics,
	})

	var cooldown services.Cooldown
	if clients.Redis != nil {
		cooldown = services.NewRedisCooldown(clients.Redis, "")
	}
	watcher := services.NewProfileChangeWatcher(log, services.ProfileWatcherDeps{
		Changes:     reposet.Change,
		Bus:         clients.Bus,
		Cooldown:    cooldown,
		Metrics:     metrics,
		Interval:    cfg.WatchInterval,
		CooldownTTL: cfg.WatchCooldown,
	})

	return Services{
		Ledger:    ledger,
		Reports:   reports,
		Summaries: summaries,
		Profiles:  profiles,
		Reference: reference,
		AgentAuth: services.NewAgentAuthService(log, cfg.AgentJWTSecret),
		Runner:    services.NewAgentRunner(log, profiles, ledger, reports, summaries),
		Watcher:   watcher,
	}
}
