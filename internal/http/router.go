package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/saarzint/AI-Agents-Geoferry/internal/http/handlers"
	httpMW "github.com/saarzint/AI-Agents-Geoferry/internal/http/middleware"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AgentAuth *httpMW.AgentAuthMiddleware
	RateLimit *httpMW.AgentRateLimiter

	LedgerHandler    *httpH.LedgerHandler
	ReportHandler    *httpH.ReportHandler
	SummaryHandler   *httpH.SummaryHandler
	ProfileHandler   *httpH.ProfileHandler
	ReferenceHandler *httpH.ReferenceHandler
	AgentHandler     *httpH.AgentHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Agent-facing writes
	agentAPI := api.Group("/")
	{
		agentAPI.Use(cfg.AgentAuth.RequireAgent())
		agentAPI.Use(cfg.RateLimit.Middleware())

		if cfg.LedgerHandler != nil {
			agentAPI.POST("/ledger/reserve", cfg.LedgerHandler.Reserve)
			agentAPI.POST("/ledger/settle", cfg.LedgerHandler.Settle)
		}
		if cfg.ReportHandler != nil {
			agentAPI.POST("/reports", cfg.ReportHandler.Submit)
		}
	}

	// Administrative writes: operators fund ledgers, reviewers settle the record
	operatorAPI := api.Group("/")
	operatorAPI.Use(cfg.AgentAuth.RequireAgent())
	operatorAPI.Use(cfg.AgentAuth.RequireRole(services.RoleOperator))
	reviewerAPI := api.Group("/")
	reviewerAPI.Use(cfg.AgentAuth.RequireAgent())
	reviewerAPI.Use(cfg.AgentAuth.RequireRole(services.RoleReviewer, services.RoleOperator))

	// Ledger
	if cfg.LedgerHandler != nil {
		operatorAPI.POST("/ledger/open", cfg.LedgerHandler.Open)
		operatorAPI.POST("/ledger/grant", cfg.LedgerHandler.Grant)
		api.GET("/users/:user_id/balance", cfg.LedgerHandler.Balance)
		api.GET("/users/:user_id/statement", cfg.LedgerHandler.Statement)
		api.GET("/users/:user_id/ledger/verify", cfg.LedgerHandler.Verify)
	}

	// Reports
	if cfg.ReportHandler != nil {
		api.GET("/reports/:id", cfg.ReportHandler.Get)
		reviewerAPI.POST("/reports/:id/verify", cfg.ReportHandler.Verify)
		api.GET("/users/:user_id/reports", cfg.ReportHandler.ListByUser)
		api.GET("/users/:user_id/conflicts", cfg.ReportHandler.Conflicts)
	}

	// Summary
	if cfg.SummaryHandler != nil {
		api.GET("/users/:user_id/summary", cfg.SummaryHandler.Get)
		reviewerAPI.POST("/users/:user_id/stage", cfg.SummaryHandler.UpdateStage)
		api.GET("/users/:user_id/next-steps", cfg.SummaryHandler.NextSteps)
	}

	// Agent runs
	if cfg.AgentHandler != nil {
		reviewerAPI.POST("/users/:user_id/agents/visa-check", cfg.AgentHandler.VisaCheck)
	}

	// Profile
	if cfg.ProfileHandler != nil {
		api.GET("/profiles/:user_id", cfg.ProfileHandler.Get)
		api.PATCH("/profiles/:user_id", cfg.ProfileHandler.Update)
		api.GET("/profiles/:user_id/changes", cfg.ProfileHandler.Changes)
	}

	// Reference data
	if cfg.ReferenceHandler != nil {
		api.GET("/reference/requirements", cfg.ReferenceHandler.Requirements)
		api.GET("/reference/visa", cfg.ReferenceHandler.Visa)
	}

	return r
}
