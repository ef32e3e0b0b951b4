package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
)

func TestAgentRateLimiterPerAgent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lim := NewAgentRateLimiter(0.001, 2)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := ctxutil.WithAgent(c.Request.Context(), c.GetHeader("X-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(lim.Middleware())
	r.POST("/api/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(agent string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/reports", nil).WithContext(context.Background())
		req.Header.Set("X-Agent", agent)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	want := []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}
	for i, w := range want {
		if got := send("visa_requirements"); got != w {
			t.Fatalf("request %d: want=%d got=%d", i, w, got)
		}
	}
	if got := send("scholarship_search"); got != http.StatusCreated {
		t.Fatalf("other agent: want=%d got=%d", http.StatusCreated, got)
	}
}

func TestAgentRateLimiterDisabled(t *testing.T) {
	if lim := NewAgentRateLimiter(0, 5); lim != nil {
		t.Fatalf("NewAgentRateLimiter(0): want nil limiter")
	}
	var lim *AgentRateLimiter
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(lim.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: want=%d got=%d", i, http.StatusOK, rec.Code)
		}
	}
}
