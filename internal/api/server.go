// Package api exposes the assessment workflow and the cache store over
// HTTP. Routing and handler layout follow the usual Fiber controller
// split; the JSON shapes mirror what the web UI already consumes.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/iliamunaev/Valinor-Secure/internal/audit"
	"github.com/iliamunaev/Valinor-Secure/internal/cache"
	"github.com/iliamunaev/Valinor-Secure/internal/radar"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Options tunes the HTTP surface.
type Options struct {
	// RateLimitPerMinute caps requests per client IP; zero disables.
	RateLimitPerMinute int
	// DefaultPurgeAge is used by the purge endpoint when the caller does
	// not supply a max_age.
	DefaultPurgeAge time.Duration
}

// Server binds the workflow service and the store to HTTP routes.
type Server struct {
	app   *fiber.App
	svc   *radar.Service
	store *cache.Store
	audit *audit.Log
	opts  Options
}

// New assembles the Fiber application with its middleware and routes.
func New(svc *radar.Service, store *cache.Store, auditLog *audit.Log, opts Options) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "Security Radar API",
			DisableStartupMessage: true,
		}),
		svc:   svc,
		store: store,
		audit: auditLog,
		opts:  opts,
	}

	s.app.Use(cors.New())
	s.app.Use(requestid.New())
	s.app.Use(accessLog)
	if opts.RateLimitPerMinute > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitPerMinute,
			Expiration: time.Minute,
		}))
	}

	s.app.Get("/", s.root)
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/assess", s.assess)
	api.Post("/assess/batch", s.assessBatch)

	// Static cache routes must precede the :key parameter route.
	api.Get("/cache", s.listCache)
	api.Get("/cache/search", s.searchCache)
	api.Get("/cache/stats", s.cacheStats)
	api.Post("/cache/purge", s.purgeCache)
	api.Get("/cache/:key", s.getCached)
	api.Get("/cache/:key/brief.pdf", s.briefPDF)
	api.Delete("/cache/:key", s.deleteCached)

	return s
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "Security Radar API",
		"version": "1.0.0",
		"endpoints": fiber.Map{
			"POST /api/assess":               "Assess a software product",
			"POST /api/assess/batch":         "Assess products from a CSV upload",
			"GET /api/cache":                 "List cached assessments",
			"GET /api/cache/search":          "Search cached assessments",
			"GET /api/cache/stats":           "Cache statistics",
			"GET /api/cache/{key}":           "Retrieve a cached assessment",
			"GET /api/cache/{key}/brief.pdf": "Download the trust brief as PDF",
			"DELETE /api/cache/{key}":        "Delete a cached assessment",
			"POST /api/cache/purge":          "Purge entries older than max_age",
			"GET /health":                    "Health check",
		},
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// accessLog emits one structured line per request.
func accessLog(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()
	reqID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(started)).
		Str("request_id", reqID).
		Msg("request")
	return err
}
