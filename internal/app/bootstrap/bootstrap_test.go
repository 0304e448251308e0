package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:                 "mongodb://localhost:27017",
		MongoDatabase:            "vpc_roadmap_test",
		SessionKey:               devSessionKey,
		SessionName:              "test-session",
		SessionMaxAge:            time.Hour,
		FacilityRefreshInterval:  time.Minute,
		FacilityStoreIdleTTL:     time.Hour,
		FacilityEvictionInterval: time.Minute,
		AuditAuth:                "all",
		AuditAdmin:               "db",
		LoginIPLimit:             10,
		LoginIPWindow:            time.Minute,
		LoginAccountLimit:        5,
		LoginAccountWindow:       5 * time.Minute,
	}
}

func TestValidateConfig_AcceptsDefaults(t *testing.T) {
	if err := ValidateConfig(&config.CoreConfig{Env: "dev"}, validAppConfig(), testLogger()); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		mutate func(*AppConfig)
	}{
		{"bad uri", "dev", func(c *AppConfig) { c.MongoURI = "postgres://nope" }},
		{"no database", "dev", func(c *AppConfig) { c.MongoDatabase = "" }},
		{"no session name", "dev", func(c *AppConfig) { c.SessionName = "" }},
		{"dev key in prod", "prod", func(c *AppConfig) {}},
		{"short key in prod", "prod", func(c *AppConfig) { c.SessionKey = "short" }},
		{"zero max age", "dev", func(c *AppConfig) { c.SessionMaxAge = 0 }},
		{"negative refresh", "dev", func(c *AppConfig) { c.FacilityRefreshInterval = -time.Second }},
		{"zero idle ttl", "dev", func(c *AppConfig) { c.FacilityStoreIdleTTL = 0 }},
		{"unknown audit mode", "dev", func(c *AppConfig) { c.AuditAdmin = "verbose" }},
		{"zero login limit", "dev", func(c *AppConfig) { c.LoginAccountLimit = 0 }},
		{"zero login window", "dev", func(c *AppConfig) { c.LoginIPWindow = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validAppConfig()
			tc.mutate(&cfg)
			if err := ValidateConfig(&config.CoreConfig{Env: tc.env}, cfg, testLogger()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStartupAndShutdown(t *testing.T) {
	deps := DBDeps{Runtime: &Runtime{}}
	ctx := context.Background()

	if err := Startup(ctx, &config.CoreConfig{Env: "dev"}, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if deps.Runtime.Registry == nil || deps.Runtime.Metrics == nil || deps.Runtime.Eviction == nil {
		t.Fatalf("runtime not initialized: %+v", deps.Runtime)
	}
	if err := Shutdown(ctx, &config.CoreConfig{}, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestStartup_RequiresRuntime(t *testing.T) {
	if err := Startup(context.Background(), &config.CoreConfig{}, validAppConfig(), DBDeps{}, testLogger()); err == nil {
		t.Error("expected error without Runtime")
	}
}

func TestBuildHandler_RequiresStartup(t *testing.T) {
	if _, err := BuildHandler(&config.CoreConfig{}, validAppConfig(), DBDeps{Runtime: &Runtime{}}, testLogger()); err == nil {
		t.Error("expected error when Startup has not run")
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, Runtime: &Runtime{}}
	core := &config.CoreConfig{Env: "dev"}
	ctx := context.Background()

	if err := EnsureSchema(ctx, core, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := Startup(ctx, core, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer deps.Runtime.Eviction.Stop()

	h, err := BuildHandler(core, validAppConfig(), deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		accept string
		want   int
	}{
		{"health", "GET", "/health", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
		{"login status", "GET", "/login", "", http.StatusOK},
		{"facilities anonymous api", "GET", "/facilities", "application/json", http.StatusUnauthorized},
		{"facilities anonymous browser", "GET", "/facilities", "text/html", http.StatusSeeOther},
		{"scoped anonymous", "GET", "/f/WLK", "application/json", http.StatusUnauthorized},
		{"forbidden", "GET", "/forbidden", "", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, rec.Code, tc.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vpcroadmap_facility_stores") {
		t.Error("expected vpcroadmap metrics in /metrics output")
	}
}
