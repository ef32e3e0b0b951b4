package ctxutil

import (
	"context"
	"strings"
)

type traceDataKey struct{}
type agentKey struct{}
type rolesKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// WithAgent records the authenticated agent identity for provenance.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey{}, strings.TrimSpace(agent))
}

// AgentFrom returns the authenticated agent name, or "" when the caller was not an agent.
func AgentFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(agentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRoles records the roles granted to the caller's token.
func WithRoles(ctx context.Context, roles ...string) context.Context {
	return context.WithValue(ctx, rolesKey{}, append([]string(nil), roles...))
}

// HasRole reports whether the caller holds any of roles.
func HasRole(ctx context.Context, roles ...string) bool {
	if ctx == nil {
		return false
	}
	held, _ := ctx.Value(rolesKey{}).([]string)
	for _, h := range held {
		for _, r := range roles {
			if h == r {
				return true
			}
		}
	}
	return false
}
