package app

import (
	"fmt"
	"os"
	"strings"

	str2duration "github.com/xhit/go-str2duration/v2"
	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the optional single-file configuration schema. Nested
// sections map naturally onto flags and env vars. Durations are strings so
// the extended "30d" syntax works in YAML too.
type FileConfig struct {
	Server struct {
		Addr               string `yaml:"addr"`
		RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`
	} `yaml:"server"`

	Cache struct {
		DB            string `yaml:"db"`
		TTL           string `yaml:"ttl"`
		PurgeInterval string `yaml:"purgeInterval"`
	} `yaml:"cache"`

	LLM struct {
		BaseURL string `yaml:"base"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"key"`
	} `yaml:"llm"`

	Audit struct {
		Log string `yaml:"log"`
	} `yaml:"audit"`

	Verbose bool `yaml:"verbose"`
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// MergeFileConfig fills unset cfg fields from the file. Flags and env keep
// precedence because only zero-valued fields are overwritten.
func MergeFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fc.Server.Addr
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = fc.Server.RateLimitPerMinute
	}
	if cfg.CacheDBPath == "" {
		cfg.CacheDBPath = fc.Cache.DB
	}
	if cfg.CacheTTL == 0 && strings.TrimSpace(fc.Cache.TTL) != "" {
		d, err := str2duration.ParseDuration(fc.Cache.TTL)
		if err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	if cfg.PurgeInterval == 0 && strings.TrimSpace(fc.Cache.PurgeInterval) != "" {
		d, err := str2duration.ParseDuration(fc.Cache.PurgeInterval)
		if err != nil {
			return fmt.Errorf("cache.purgeInterval: %w", err)
		}
		cfg.PurgeInterval = d
	}
	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = fc.Audit.Log
	}
	if !cfg.Verbose {
		cfg.Verbose = fc.Verbose
	}
	return nil
}
