package app

import (
	"github.com/saarzint/AI-Agents-Geoferry/internal/http"
	httpH "github.com/saarzint/AI-Agents-Geoferry/internal/http/handlers"
	httpMW "github.com/saarzint/AI-Agents-Geoferry/internal/http/middleware"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Ledger    *httpH.LedgerHandler
	Report    *httpH.ReportHandler
	Summary   *httpH.SummaryHandler
	Profile   *httpH.ProfileHandler
	Reference *httpH.ReferenceHandler
	Agent     *httpH.AgentHandler
}

type Middleware struct {
	AgentAuth *httpMW.AgentAuthMiddleware
	RateLimit *httpMW.AgentRateLimiter
}

func wireHandlers(log *logger.Logger, clients Clients, svc Services) Handlers {
	log.Info("Wiring handlers...")
	var health *httpH.HealthHandler
	if clients.Redis != nil {
		health = httpH.NewHealthHandler(clients.DB, clients.Redis)
	} else {
		health = httpH.NewHealthHandler(clients.DB, nil)
	}
	return Handlers{
		Health:    health,
		Ledger:    httpH.NewLedgerHandler(svc.Ledger),
		Report:    httpH.NewReportHandler(svc.Reports),
		Summary:   httpH.NewSummaryHandler(svc.Summaries),
		Profile:   httpH.NewProfileHandler(svc.Profiles),
		Reference: httpH.NewReferenceHandler(svc.Reference),
		Agent:     httpH.NewAgentHandler(svc.Runner, svc.Reference),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, svc Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		AgentAuth: httpMW.NewAgentAuthMiddleware(log, svc.AgentAuth),
		RateLimit: httpMW.NewAgentRateLimiter(cfg.AgentRateLimitRPS, cfg.AgentRateLimitBurst),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, mw Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		CORSOrigins:      cfg.CORSOrigins,
		AgentAuth:        mw.AgentAuth,
		RateLimit:        mw.RateLimit,
		LedgerHandler:    handlers.Ledger,
		ReportHandler:    handlers.Report,
		SummaryHandler:   handlers.Summary,
		ProfileHandler:   handlers.Profile,
		ReferenceHandler: handlers.Reference,
		AgentHandler:     handlers.Agent,
		HealthHandler:    handlers.Health,
	})
}
