package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/iliamunaev/Valinor-Secure/internal/api"
	"github.com/iliamunaev/Valinor-Secure/internal/audit"
	"github.com/iliamunaev/Valinor-Secure/internal/cache"
	"github.com/iliamunaev/Valinor-Secure/internal/llm"
	"github.com/iliamunaev/Valinor-Secure/internal/radar"
)

// App owns the wired-together service: the cache store, the assessor, and
// the HTTP server. Construct with New, serve with Run, release with Close.
type App struct {
	cfg    Config
	store  *cache.Store
	audit  *audit.Log
	server *api.Server
}

// New builds the application. An unusable cache store aborts startup; a
// missing LLM configuration does not, the assessor then serves baseline
// reports and says so in the log.
func New(ctx context.Context, cfg Config) (*App, error) {
	cfg.Defaults()

	storeOpts := []cache.Option{}
	if cfg.CacheTTL > 0 {
		storeOpts = append(storeOpts,
			cache.WithPurgeAge(cfg.CacheTTL),
			cache.WithPurgeInterval(cfg.PurgeInterval))
	}
	store, err := cache.Open(ctx, cfg.CacheDBPath, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("init cache store: %w", err)
	}
	log.Info().Str("db", cfg.CacheDBPath).Dur("ttl", cfg.CacheTTL).Msg("assessment cache ready")

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			// Auditing is best-effort; the assessment path stays up.
			log.Warn().Err(err).Str("path", cfg.AuditLogPath).Msg("audit log unavailable; continuing without")
			auditLog = nil
		}
	}

	var client llm.Client
	if cfg.LLMModel != "" {
		transportCfg := openai.DefaultConfig(cfg.LLMAPIKey)
		if cfg.LLMBaseURL != "" {
			transportCfg.BaseURL = cfg.LLMBaseURL
		}
		transportCfg.HTTPClient = newLLMHTTPClient()
		provider := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(transportCfg)}
		client = provider

		// Best-effort connectivity preflight; failures downgrade to a
		// warning so the service can start before the backend does.
		preflightCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		models, err := provider.ListModels(preflightCtx)
		if err != nil {
			log.Warn().Err(err).Msg("LLM model list failed; continuing")
		} else {
			log.Info().Int("count", len(models.Models)).Msg("LLM models available")
		}
	} else {
		log.Warn().Msg("no LLM model configured; serving baseline assessments")
	}

	svc := &radar.Service{
		Store: store,
		Assessor: &radar.Assessor{
			Client: client,
			Model:  cfg.LLMModel,
			Audit:  auditLog,
		},
	}

	// The purge endpoint needs a default age even when the janitor is off.
	purgeAge := cfg.CacheTTL
	if purgeAge <= 0 {
		purgeAge = 30 * 24 * time.Hour
	}
	server := api.New(svc, store, auditLog, api.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DefaultPurgeAge:    purgeAge,
	})

	return &App{cfg: cfg, store: store, audit: auditLog, server: server}, nil
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (a *App) Run() error {
	log.Info().Str("addr", a.cfg.ListenAddr).Msg("security radar API listening")
	return a.server.Listen(a.cfg.ListenAddr)
}

// Shutdown drains the HTTP server, then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return a.store.Close()
}
