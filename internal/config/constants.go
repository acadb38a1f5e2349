package config

import "time"

// Application constants
const (
	AppName = "vidgate"

	// EnvPrefix namespaces every environment variable, e.g. VIDGATE_SERVER_PORT.
	EnvPrefix = "VIDGATE"

	// ConfigFileEnv names a YAML config file explicitly.
	ConfigFileEnv = "VIDGATE_CONFIG"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreHTTP   = "http"
	StoreSheets = "sheets"
	StoreRedis  = "redis"
)

// Concurrency modes for license writes
const (
	// ConcurrencyLegacy reads and rewrites the whole collection with no
	// version check. Concurrent writers can lose updates.
	ConcurrencyLegacy = "legacy"

	// ConcurrencyOptimistic writes one record conditional on its version.
	ConcurrencyOptimistic = "optimistic"
)

// Session token modes
const (
	TokenUnsigned = "unsigned"
	TokenSigned   = "signed"
)

// Protocol constants
const (
	DefaultCookieName      = "vidgate_session"
	SessionCookieMaxAge    = 24 * time.Hour
	DefaultSessionTTL      = 24 * time.Hour
	DefaultClientTimeout   = 15 * time.Second
	DefaultConflictRetries = 3
	MinSigningSecretLen    = 32
)
