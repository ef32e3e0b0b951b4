package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

const DefaultAgentTokenTTL = 24 * time.Hour

// Roles gate the administrative routes. A token with no roles can only report and meter.
const (
	RoleOperator = "operator"
	RoleReviewer = "reviewer"
)

var knownRoles = map[string]bool{RoleOperator: true, RoleReviewer: true}

// AgentClaims identifies the calling agent. Reports and usage submitted with the
// token are attributed to Agent.
type AgentClaims struct {
	Agent string   `json:"agent"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type AgentAuthService interface {
	// Enabled is false when no signing secret is configured; callers then skip auth.
	Enabled() bool
	IssueToken(agent string, ttl time.Duration, roles ...string) (string, error)
	// ContextFromToken verifies the token and attaches the agent identity to ctx.
	ContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type agentAuthService struct {
	log    *logger.Logger
	secret []byte
}

func NewAgentAuthService(log *logger.Logger, secret string) AgentAuthService {
	s := &agentAuthService{
		log:    log.With("service", "AgentAuthService"),
		secret: []byte(strings.TrimSpace(secret)),
	}
	if !s.Enabled() {
		s.log.Warn("agent authentication disabled: no signing secret configured")
	}
	return s
}

func (s *agentAuthService) Enabled() bool { return len(s.secret) > 0 }

func (s *agentAuthService) IssueToken(agent string, ttl time.Duration, roles ...string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("agent auth: no signing secret configured")
	}
	agent = agents.NormalizeAgentName(agent)
	if agent == "" {
		return "", fmt.Errorf("agent auth: agent name required")
	}
	granted, err := normalizeRoles(roles)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultAgentTokenTTL
	}
	now := time.Now()
	claims := AgentClaims{
		Agent: agent,
		Roles: granted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agent,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *agentAuthService) ContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	parsed, err := parser.ParseWithClaims(tokenString, &AgentClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return ctx, fmt.Errorf("parse agent token: %w", err)
	}
	claims, ok := parsed.Claims.(*AgentClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired agent token")
	}
	agent := agents.NormalizeAgentName(claims.Agent)
	if agent == "" {
		return ctx, fmt.Errorf("agent token has no agent claim")
	}
	// unknown roles from a foreign issuer are dropped rather than trusted
	var roles []string
	for _, r := range claims.Roles {
		if r = strings.ToLower(strings.TrimSpace(r)); knownRoles[r] {
			roles = append(roles, r)
		}
	}
	return ctxutil.WithRoles(ctxutil.WithAgent(ctx, agent), roles...), nil
}

func normalizeRoles(in []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || seen[r] {
			continue
		}
		if !knownRoles[r] {
			return nil, fmt.Errorf("agent auth: unknown role %q", r)
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}
