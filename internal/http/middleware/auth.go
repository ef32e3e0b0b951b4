package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

var (
	errMissingToken = errors.New("missing or invalid token")
	errMissingRole  = errors.New("token lacks the required role")
)

type AgentAuthMiddleware struct {
	log  *logger.Logger
	auth services.AgentAuthService
}

func NewAgentAuthMiddleware(log *logger.Logger, auth services.AgentAuthService) *AgentAuthMiddleware {
	return &AgentAuthMiddleware{log: log.With("Middleware", "AgentAuthMiddleware"), auth: auth}
}

// RequireAgent rejects requests without a valid agent token. With auth disabled it
// lets everything through and handlers fall back to the agent named in the body.
func (am *AgentAuthMiddleware) RequireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am == nil || am.auth == nil || !am.auth.Enabled() {
			c.Next()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		ctx, err := am.auth.ContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("agent token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole runs after RequireAgent and admits only tokens holding one of roles.
// With auth disabled it lets everything through, like RequireAgent.
func (am *AgentAuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if am == nil || am.auth == nil || !am.auth.Enabled() {
			c.Next()
			return
		}
		if !ctxutil.HasRole(c.Request.Context(), roles...) {
			am.log.Debug("role check failed", "agent", ctxutil.AgentFrom(c.Request.Context()), "want", roles)
			response.RespondError(c, http.StatusForbidden, "forbidden", errMissingRole)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
