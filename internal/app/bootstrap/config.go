package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for the roadmap service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: VPCROADMAP_MONGO_URI, VPCROADMAP_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "vpc_roadmap", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 5, Desc: "MongoDB min connection pool size (default: 5)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "vpcroadmap-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},

	// Facility store lifecycle
	{Name: "facility_refresh_interval", Default: "5m", Desc: "Re-fetch a session's memberships when older than this (0 disables)"},
	{Name: "facility_store_idle_ttl", Default: "2h", Desc: "Drop a session's facility store after this long unused"},
	{Name: "facility_eviction_interval", Default: "5m", Desc: "How often idle facility stores are swept"},

	// Audit logging
	{Name: "audit_auth", Default: "all", Desc: "Sign-in/out audit destination: all, db, log, off"},
	{Name: "audit_admin", Default: "all", Desc: "Facility/membership audit destination: all, db, log, off"},

	// Sign-in throttling
	{Name: "login_ip_limit", Default: 10, Desc: "Sign-in attempts allowed per client address per window"},
	{Name: "login_ip_window", Default: "1m", Desc: "Window for login_ip_limit"},
	{Name: "login_account_limit", Default: 5, Desc: "Sign-in attempts allowed per login ID per window"},
	{Name: "login_account_window", Default: "5m", Desc: "Window for login_account_limit"},

	// Database timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list reads and single writes"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for multi-collection writes"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, VPCROADMAP_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "VPCROADMAP", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 720*time.Hour),

		FacilityRefreshInterval:  appValues.Duration("facility_refresh_interval", 5*time.Minute),
		FacilityStoreIdleTTL:     appValues.Duration("facility_store_idle_ttl", 2*time.Hour),
		FacilityEvictionInterval: appValues.Duration("facility_eviction_interval", 5*time.Minute),

		AuditAuth:  appValues.String("audit_auth"),
		AuditAdmin: appValues.String("audit_admin"),

		LoginIPLimit:       appValues.Int("login_ip_limit"),
		LoginIPWindow:      appValues.Duration("login_ip_window", time.Minute),
		LoginAccountLimit:  appValues.Int("login_account_limit"),
		LoginAccountWindow: appValues.Duration("login_account_window", 5*time.Minute),

		Timeouts: TimeoutsConfig{
			Short:  appValues.Duration("timeout_short", 5*time.Second),
			Medium: appValues.Duration("timeout_medium", 10*time.Second),
			Long:   appValues.Duration("timeout_long", 30*time.Second),
		},
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database is required")
	}
	if appCfg.SessionName == "" {
		return errors.New("session_name is required")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && (appCfg.SessionKey == devSessionKey || len(appCfg.SessionKey) < 32) {
		return errors.New("session_key must be a strong secret of at least 32 characters in prod")
	}
	if appCfg.SessionMaxAge <= 0 {
		return errors.New("session_max_age must be positive")
	}
	if appCfg.FacilityRefreshInterval < 0 {
		return errors.New("facility_refresh_interval must not be negative")
	}
	if appCfg.FacilityStoreIdleTTL <= 0 || appCfg.FacilityEvictionInterval <= 0 {
		return errors.New("facility_store_idle_ttl and facility_eviction_interval must be positive")
	}
	for key, mode := range map[string]string{"audit_auth": appCfg.AuditAuth, "audit_admin": appCfg.AuditAdmin} {
		if mode != "" && !auditlog.ValidMode(mode) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, mode)
		}
	}
	if appCfg.LoginIPLimit <= 0 || appCfg.LoginAccountLimit <= 0 {
		return errors.New("login_ip_limit and login_account_limit must be positive")
	}
	if appCfg.LoginIPWindow <= 0 || appCfg.LoginAccountWindow <= 0 {
		return errors.New("login_ip_window and login_account_window must be positive")
	}
	if appCfg.FacilityStoreIdleTTL < appCfg.FacilityEvictionInterval {
		logger.Warn("facility_store_idle_ttl is shorter than facility_eviction_interval; stores live up to one interval longer",
			zap.Duration("idle_ttl", appCfg.FacilityStoreIdleTTL),
			zap.Duration("interval", appCfg.FacilityEvictionInterval))
	}
	return nil
}
