package app

import (
	"os"
	"strconv"
	"strings"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// ApplyEnvToConfig populates unset fields of cfg from environment
// variables. Explicit cfg values (flags) take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = os.Getenv("API_ADDR")
	}
	if cfg.CacheDBPath == "" {
		cfg.CacheDBPath = os.Getenv("CACHE_DB_PATH")
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = os.Getenv("AUDIT_LOG_PATH")
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = os.Getenv("LLM_MODEL")
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	}

	// Durations accept the extended day/week syntax ("30d", "1w").
	if cfg.CacheTTL == 0 {
		if s := strings.TrimSpace(os.Getenv("CACHE_TTL")); s != "" {
			if d, err := str2duration.ParseDuration(s); err == nil {
				cfg.CacheTTL = d
			}
		}
	}
	if cfg.PurgeInterval == 0 {
		if s := strings.TrimSpace(os.Getenv("CACHE_PURGE_INTERVAL")); s != "" {
			if d, err := str2duration.ParseDuration(s); err == nil {
				cfg.PurgeInterval = d
			}
		}
	}

	if cfg.RateLimitPerMinute == 0 {
		if s := strings.TrimSpace(os.Getenv("RATE_LIMIT_PER_MINUTE")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				cfg.RateLimitPerMinute = n
			}
		}
	}

	if !cfg.Verbose {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv("VERBOSE"))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				cfg.Verbose = true
			}
		}
	}
}
