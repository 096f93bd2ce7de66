package app

import "time"

// Config holds runtime configuration for the service.
type Config struct {
	// HTTP
	ListenAddr         string
	RateLimitPerMinute int

	// Cache store
	CacheDBPath   string
	CacheTTL      time.Duration // entries older than this are purged; 0 disables the janitor
	PurgeInterval time.Duration

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Audit
	AuditLogPath string

	// Behavior
	Verbose bool
}

// Defaults fills zero-valued fields that need a sane default.
func (c *Config) Defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.CacheDBPath == "" {
		c.CacheDBPath = "assessment_cache.db"
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = time.Hour
	}
}
