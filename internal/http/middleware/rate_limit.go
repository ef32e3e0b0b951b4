package middleware

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
)

var errRateLimited = errors.New("rate limit exceeded")

// AgentRateLimiter hands out one token bucket per caller. Callers are keyed by the
// authenticated agent, or by client IP when auth is disabled.
type AgentRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewAgentRateLimiter returns nil when perSecond is not positive, which disables limiting.
func NewAgentRateLimiter(perSecond float64, burst int) *AgentRateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &AgentRateLimiter{
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *AgentRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func (l *AgentRateLimiter) Middleware() gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := ctxutil.AgentFrom(c.Request.Context())
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.limiter(key).Allow() {
			c.Header("Retry-After", "1")
			response.RespondError(c, http.StatusTooManyRequests, "rate_limited", errRateLimited)
			return
		}
		c.Next()
	}
}
