package app

import (
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/db"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/freshness"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/envutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type Config struct {
	Port        string
	MetricsAddr string
	Environment string
	ServiceName string

	DB    db.Config
	Redis bus.RedisConfig

	InitialGrant         int64
	FreshnessHorizonDays int
	ConflictWindow       time.Duration

	PolicyPath  string
	PolicyWatch bool

	AgentJWTSecret      string
	AgentRateLimitRPS   float64
	AgentRateLimitBurst int
	CORSOrigins         []string

	WatchInterval time.Duration
	WatchCooldown time.Duration
}

// configKeys lists every variable LoadConfig reads, for the defaults log line.
var configKeys = []string{
	"PORT", "METRICS_ADDR", "ENVIRONMENT", "OTEL_SERVICE_NAME",
	"DB_DRIVER", "SQLITE_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_NAME", "POSTGRES_SSLMODE",
	"REDIS_ADDR", "EVENTS_CHANNEL",
	"LEDGER_INITIAL_GRANT", "FRESHNESS_HORIZON_DAYS", "CONFLICT_WINDOW_DAYS",
	"RECONCILE_POLICY_PATH", "RECONCILE_POLICY_WATCH",
	"AGENT_RATE_LIMIT_RPS", "AGENT_RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	"PROFILE_WATCH_INTERVAL", "PROFILE_WATCH_COOLDOWN",
}

func LoadConfig(log *logger.Logger) Config {
	horizon := envutil.Int("FRESHNESS_HORIZON_DAYS", freshness.DefaultHorizonDays)
	if horizon <= 0 {
		horizon = freshness.DefaultHorizonDays
	}
	conflictDays := envutil.Int("CONFLICT_WINDOW_DAYS", horizon)

	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		Environment: envutil.String("ENVIRONMENT", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "admissions-ledger"),
		DB: db.Config{
			Driver:     envutil.String("DB_DRIVER", db.DriverSQLite),
			SQLitePath: envutil.String("SQLITE_PATH", "admissions.db"),
			Postgres: db.PostgresConfig{
				Host:     envutil.String("POSTGRES_HOST", "localhost"),
				Port:     envutil.String("POSTGRES_PORT", "5432"),
				User:     envutil.String("POSTGRES_USER", "postgres"),
				Password: envutil.String("POSTGRES_PASSWORD", ""),
				Name:     envutil.String("POSTGRES_NAME", "admissions"),
				SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			},
		},
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			Channel:  envutil.String("EVENTS_CHANNEL", bus.DefaultChannel),
		},
		InitialGrant:         envutil.Int64("LEDGER_INITIAL_GRANT", services.DefaultInitialGrant),
		FreshnessHorizonDays: horizon,
		ConflictWindow:       time.Duration(conflictDays) * 24 * time.Hour,
		PolicyPath:           envutil.String("RECONCILE_POLICY_PATH", ""),
		PolicyWatch:          envutil.Bool("RECONCILE_POLICY_WATCH", false),
		AgentJWTSecret:       envutil.String("AGENT_JWT_SECRET", ""),
		AgentRateLimitRPS:    envutil.Float("AGENT_RATE_LIMIT_RPS", 5),
		AgentRateLimitBurst:  envutil.Int("AGENT_RATE_LIMIT_BURST", 20),
		CORSOrigins:          splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		WatchInterval:        envutil.Duration("PROFILE_WATCH_INTERVAL", services.DefaultWatchInterval),
		WatchCooldown:        envutil.Duration("PROFILE_WATCH_COOLDOWN", services.DefaultWatchCooldown),
	}
	if cfg.InitialGrant < 0 {
		cfg.InitialGrant = services.DefaultInitialGrant
	}

	if log != nil {
		var defaulted []string
		for _, k := range configKeys {
			if !envutil.IsSet(k) {
				defaulted = append(defaulted, k)
			}
		}
		log.Info("Configuration loaded",
			"db_driver", cfg.DB.Driver,
			"redis", cfg.Redis.Addr != "",
			"initial_grant", cfg.InitialGrant,
			"freshness_horizon_days", cfg.FreshnessHorizonDays,
			"conflict_window", cfg.ConflictWindow.String(),
			"policy_path", cfg.PolicyPath,
			"agent_auth", cfg.AgentJWTSecret != "",
			"defaulted", strings.Join(defaulted, ","),
		)
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
