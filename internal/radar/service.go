package radar

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/iliamunaev/Valinor-Secure/internal/cache"
)

// Service is the assessment workflow: derive the cache key, short-circuit
// on a hit, otherwise assess and populate the store. It is the only caller
// of the store in the request path.
type Service struct {
	Store    *cache.Store
	Assessor *Assessor
}

// Assess runs the cache-aware workflow for one request. Cache hits return
// the stored payload annotated with cache metadata; misses (and forced
// refreshes) generate a fresh assessment and persist it. A failed persist
// is logged but does not fail the request, since the caller already has a
// complete result.
func (s *Service) Assess(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := cache.DeriveKey(req.Identity())

	if !req.ForceRefresh {
		if res, err := s.lookup(ctx, key); err == nil {
			return res, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			return nil, err
		}
	}

	assessment, err := s.Assessor.Assess(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("assess %q: %w", req.ProductName, err)
	}
	assessment.CacheKey = key

	if err := s.Store.Set(ctx, key, req.Identity(), assessment); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache assessment")
	}
	return &Result{Assessment: *assessment}, nil
}

// Lookup retrieves a cached assessment by its key, recording the access.
// Misses surface cache.ErrNotFound for the API layer to map to 404.
func (s *Service) Lookup(ctx context.Context, key string) (*Result, error) {
	return s.lookup(ctx, key)
}

func (s *Service) lookup(ctx context.Context, key string) (*Result, error) {
	entry, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	assessment, err := cache.Decode[Assessment](entry)
	if err != nil {
		// A payload we can no longer decode is as good as absent; the
		// workflow regenerates it on the next assess call.
		log.Warn().Err(err).Str("key", key).Msg("cached payload undecodable")
		return nil, cache.ErrNotFound
	}
	assessment.CacheKey = entry.Key
	return &Result{
		Assessment: assessment,
		Cache: &CacheInfo{
			Hit:          true,
			CachedAt:     entry.CachedAt,
			AccessCount:  entry.AccessCount,
			LastAccessed: entry.LastAccessed,
		},
	}, nil
}
