package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Sessions idle longer than this are deactivated; inactive sessions older
// than the retention window are deleted along with their backlog.
const (
	SessionIdleTTL   = 24 * time.Hour
	SessionRetention = 7 * 24 * time.Hour
)

// Identity cookie lifetime
const ParticipantCookieMaxAge = 24 * time.Hour
