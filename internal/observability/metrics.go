package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	aggregateOps       *prometheus.CounterVec
	aggregateLatency   *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	settlements   *prometheus.CounterVec
	tokensSettled *prometheus.CounterVec
	grants        prometheus.Counter

	reportsSubmitted *prometheus.CounterVec
	reportConflicts  *prometheus.CounterVec
	summaryRecompute *prometheus.CounterVec
	refetches        *prometheus.CounterVec
	reevaluations    prometheus.Counter
	events           *prometheus.CounterVec

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process-wide metrics once. It returns nil when METRICS_ENABLED is off;
// every method is nil-safe so callers never need to check.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers every collector on reg. Tests pass a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adm_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "adm_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		aggregateOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_aggregate_operations_total",
			Help: "Aggregate write operations by operation/status.",
		}, []string{"op", "status"}),
		aggregateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adm_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency by operation/status.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op", "status"}),
		aggregateConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_aggregate_conflicts_total",
			Help: "Aggregate writes that failed with a conflict.",
		}, []string{"op"}),
		aggregateRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_aggregate_retryable_total",
			Help: "Aggregate writes that failed with a retryable store error.",
		}, []string{"op"}),
		settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_ledger_settlements_total",
			Help: "Settled usage entries by endpoint/provider.",
		}, []string{"endpoint", "provider"}),
		tokensSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_ledger_tokens_total",
			Help: "Tokens settled by provider/direction (debit or credit).",
		}, []string{"provider", "direction"}),
		grants: f.NewCounter(prometheus.CounterOpts{
			Name: "adm_ledger_grants_total",
			Help: "Token grants issued.",
		}),
		reportsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_reports_submitted_total",
			Help: "Agent reports appended by agent.",
		}, []string{"agent"}),
		reportConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_report_conflicts_total",
			Help: "Detected report disagreements by field.",
		}, []string{"field"}),
		summaryRecompute: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_summary_recompute_total",
			Help: "Summary recomputations by outcome.",
		}, []string{"outcome"}),
		refetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_reference_refetch_total",
			Help: "Reference cache refreshes by kind/result.",
		}, []string{"kind", "result"}),
		reevaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "adm_profile_reevaluations_total",
			Help: "Re-evaluation events published after significant profile changes.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adm_bus_events_total",
			Help: "Events published on the bus by type/result.",
		}, []string{"type", "result"}),
		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adm_db_stats",
			Help: "database/sql connection pool stats.",
		}, []string{"metric"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "adm_redis_up",
			Help: "Redis connectivity (1=up, 0=down).",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "adm_redis_ping_seconds",
			Help: "Redis ping latency in seconds.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = orUnknown(op)
	status = orUnknown(status)
	m.aggregateOps.WithLabelValues(op, status).Inc()
	m.aggregateLatency.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(orUnknown(op)).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(orUnknown(op)).Inc()
}

// ObserveSettlement counts one usage entry. Negative tokens are credits.
func (m *Metrics) ObserveSettlement(endpoint, provider string, tokens int64) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	m.settlements.WithLabelValues(orUnknown(endpoint), provider).Inc()
	switch {
	case tokens > 0:
		m.tokensSettled.WithLabelValues(provider, "debit").Add(float64(tokens))
	case tokens < 0:
		m.tokensSettled.WithLabelValues(provider, "credit").Add(float64(-tokens))
	}
}

func (m *Metrics) IncGrant() {
	if m == nil {
		return
	}
	m.grants.Inc()
}

func (m *Metrics) IncReportSubmitted(agent string) {
	if m == nil {
		return
	}
	m.reportsSubmitted.WithLabelValues(orUnknown(agent)).Inc()
}

func (m *Metrics) IncReportConflict(field string) {
	if m == nil {
		return
	}
	m.reportConflicts.WithLabelValues(orUnknown(field)).Inc()
}

func (m *Metrics) IncSummaryRecompute(outcome string) {
	if m == nil {
		return
	}
	m.summaryRecompute.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) IncRefetch(kind, result string) {
	if m == nil {
		return
	}
	m.refetches.WithLabelValues(orUnknown(kind), orUnknown(result)).Inc()
}

func (m *Metrics) IncReevaluation() {
	if m == nil {
		return
	}
	m.reevaluations.Inc()
}

func (m *Metrics) IncEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(orUnknown(eventType), orUnknown(result)).Inc()
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
