package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/db"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

func TestNewWithConfigServesRoutes(t *testing.T) {
	ctx := context.Background()
	log := testutil.Logger(t)
	cfg := Config{
		Port:                 "0",
		Environment:          "test",
		DB:                   db.Config{Driver: db.DriverSQLite},
		InitialGrant:         500,
		FreshnessHorizonDays: 30,
	}
	a, err := NewWithConfig(ctx, log, cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		w := httptest.NewRecorder()
		a.Server.Engine.ServeHTTP(w, req)
		return w
	}

	if w := do(http.MethodGet, "/healthcheck", ""); w.Code != http.StatusOK {
		t.Fatalf("healthcheck: want=200 got=%d", w.Code)
	}
	w := do(http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"redis":"disabled"`) {
		t.Fatalf("readyz: want=200 with redis disabled got=%d %s", w.Code, w.Body.String())
	}

	u := testutil.SeedUserProfile(t, ctx, a.Clients.DB, "app@example.com")
	if w := do(http.MethodPost, "/api/ledger/open", `{"user_id":`+uintString(u.ID)+`}`); w.Code != http.StatusCreated {
		t.Fatalf("open: want=201 got=%d %s", w.Code, w.Body.String())
	}
	w = do(http.MethodGet, "/api/users/"+uintString(u.ID)+"/balance", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"balance":500`) {
		t.Fatalf("balance: want=200 balance=500 got=%d %s", w.Code, w.Body.String())
	}
}

func TestAdministrativeRoutesNeedRole(t *testing.T) {
	ctx := context.Background()
	log := testutil.Logger(t)
	cfg := Config{
		Port:                 "0",
		Environment:          "test",
		DB:                   db.Config{Driver: db.DriverSQLite},
		InitialGrant:         500,
		FreshnessHorizonDays: 30,
		AgentJWTSecret:       "app-test-secret",
	}
	a, err := NewWithConfig(ctx, log, cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	u := testutil.SeedUserProfile(t, ctx, a.Clients.DB, "roles@example.com")

	agentToken, err := a.Services.AgentAuth.IssueToken("university", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken (agent): %v", err)
	}
	operatorToken, err := a.Services.AgentAuth.IssueToken("ops console", time.Hour, services.RoleOperator)
	if err != nil {
		t.Fatalf("IssueToken (operator): %v", err)
	}

	do := func(method, path, body, token string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		a.Server.Engine.ServeHTTP(w, req)
		return w.Code
	}

	id := uintString(u.ID)
	cases := []struct {
		name, method, path, body, token string
		want                            int
	}{
		{"open anonymous", http.MethodPost, "/api/ledger/open", `{"user_id":` + id + `}`, "", http.StatusUnauthorized},
		{"open as agent", http.MethodPost, "/api/ledger/open", `{"user_id":` + id + `}`, agentToken, http.StatusForbidden},
		{"grant as agent", http.MethodPost, "/api/ledger/grant", `{"user_id":` + id + `,"amount":100}`, agentToken, http.StatusForbidden},
		{"stage anonymous", http.MethodPost, "/api/users/" + id + "/stage", `{"stage":"Submitted"}`, "", http.StatusUnauthorized},
		{"stage as agent", http.MethodPost, "/api/users/" + id + "/stage", `{"stage":"Submitted"}`, agentToken, http.StatusForbidden},
		{"verify as agent", http.MethodPost, "/api/reports/1/verify", "", agentToken, http.StatusForbidden},
		{"open as operator", http.MethodPost, "/api/ledger/open", `{"user_id":` + id + `}`, operatorToken, http.StatusCreated},
		{"stage as operator", http.MethodPost, "/api/users/" + id + "/stage", `{"stage":"Submitted"}`, operatorToken, http.StatusOK},
	}
	for _, tc := range cases {
		if got := do(tc.method, tc.path, tc.body, tc.token); got != tc.want {
			t.Fatalf("%s: want=%d got=%d", tc.name, tc.want, got)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test, ,http://b.test ")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("splitList: got=%v", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("splitList(empty): got=%v", got)
	}
}

func uintString(v uint) string { return strconv.FormatUint(uint64(v), 10) }
