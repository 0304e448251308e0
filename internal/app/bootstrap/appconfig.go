package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging and CORS. AppConfig is
// everything specific to the roadmap service: where the facility data
// lives, how sessions are signed, and how long per-session facility stores
// are kept and refreshed.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: vpcroadmap-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Facility store lifecycle
	FacilityRefreshInterval  time.Duration // Re-fetch memberships for stores older than this (0 disables)
	FacilityStoreIdleTTL     time.Duration // Drop a session's store after this long unused
	FacilityEvictionInterval time.Duration // How often idle stores are swept

	// Audit logging destinations: all, db, log or off
	AuditAuth  string // sign-in and sign-out events
	AuditAdmin string // facility and membership changes

	// Sign-in throttling
	LoginIPLimit       int           // attempts per client address per window
	LoginIPWindow      time.Duration
	LoginAccountLimit  int           // attempts per login ID per window
	LoginAccountWindow time.Duration

	// Database operation timeouts
	Timeouts TimeoutsConfig
}

// TimeoutsConfig overrides system/timeouts. Zero keeps the default.
type TimeoutsConfig struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}
