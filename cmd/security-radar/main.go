package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/iliamunaev/Valinor-Secure/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; real env always wins over it.
	_ = godotenv.Load()

	var (
		configPath    string
		addr          string
		cacheDB       string
		cacheTTL      string
		purgeInterval string
		auditLog      string
		llmBaseURL    string
		llmModel      string
		llmKey        string
		rateLimit     int
		verbose       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to optional YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address, e.g. :8000")
	flag.StringVar(&cacheDB, "cache.db", "", "Path to the SQLite assessment cache")
	flag.StringVar(&cacheTTL, "cache.ttl", "", "Max age for cache entries before purge (e.g. 24h, 30d); empty disables the janitor")
	flag.StringVar(&purgeInterval, "cache.purgeInterval", "", "How often the janitor purges expired entries")
	flag.StringVar(&auditLog, "audit.log", "", "Path to the request/response audit log; empty disables auditing")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for OpenAI-compatible server")
	flag.IntVar(&rateLimit, "rate.limit", 0, "Requests per minute per client IP (0 disables)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg := app.Config{
		ListenAddr:         addr,
		CacheDBPath:        cacheDB,
		AuditLogPath:       auditLog,
		LLMBaseURL:         llmBaseURL,
		LLMModel:           llmModel,
		LLMAPIKey:          llmKey,
		RateLimitPerMinute: rateLimit,
		Verbose:            verbose,
	}
	if s := strings.TrimSpace(cacheTTL); s != "" {
		d, err := str2duration.ParseDuration(s)
		if err != nil {
			log.Fatal().Err(err).Str("value", s).Msg("invalid -cache.ttl")
		}
		cfg.CacheTTL = d
	}
	if s := strings.TrimSpace(purgeInterval); s != "" {
		d, err := str2duration.ParseDuration(s)
		if err != nil {
			log.Fatal().Err(err).Str("value", s).Msg("invalid -cache.purgeInterval")
		}
		cfg.PurgeInterval = d
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("config file")
		}
		if err := app.MergeFileConfig(&cfg, fc); err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("config file")
		}
	}
	app.ApplyEnvToConfig(&cfg)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func run(cfg app.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	}
}
