package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	TrustScore int
	Summary    string
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreGetMiss(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := Identity{ProductName: "FileZilla", CompanyName: "Tim Kosse", URL: "https://filezilla-project.org"}
	key := DeriveKey(id)
	require.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: 65, Summary: "ok"}))

	entry, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, entry.Key)
	assert.Equal(t, "FileZilla", entry.ProductName)
	assert.Equal(t, "Tim Kosse", entry.CompanyName)
	assert.EqualValues(t, 1, entry.AccessCount, "counter starts at 0 on write, first read observes 1")
	assert.False(t, entry.CachedAt.IsZero())
	assert.False(t, entry.LastAccessed.Before(entry.CachedAt))

	payload, err := Decode[testPayload](entry)
	require.NoError(t, err)
	assert.Equal(t, 65, payload.TrustScore)
	assert.Equal(t, "ok", payload.Summary)
}

func TestStoreAccessMetadataMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := DeriveKey(Identity{ProductName: "slack"})
	require.NoError(t, s.Set(ctx, key, Identity{ProductName: "Slack"}, testPayload{TrustScore: 80}))

	var last *Entry
	for i := 1; i <= 5; i++ {
		entry, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.EqualValues(t, i, entry.AccessCount)
		if last != nil {
			assert.False(t, entry.LastAccessed.Before(last.LastAccessed))
			assert.Equal(t, last.CachedAt, entry.CachedAt, "cached_at is immutable under reads")
		}
		last = entry
	}
}

func TestStoreOverwriteResetsMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := Identity{ProductName: "Zoom"}
	key := DeriveKey(id)

	require.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: 40}))
	for i := 0; i < 3; i++ {
		_, err := s.Get(ctx, key)
		require.NoError(t, err)
	}

	// Forced refresh: payload replaced wholesale, counters restart.
	require.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: 70}))
	entry, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.AccessCount)
	payload, err := Decode[testPayload](entry)
	require.NoError(t, err)
	assert.Equal(t, 70, payload.TrustScore)
}

func TestStoreSetUnserializablePayloadLeavesEntryIntact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := Identity{ProductName: "VLC"}
	key := DeriveKey(id)
	require.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: 55}))

	// msgpack cannot encode a function value; the old entry must survive.
	err := s.Set(ctx, key, id, func() {})
	require.Error(t, err)

	entry, err := s.Get(ctx, key)
	require.NoError(t, err)
	payload, err := Decode[testPayload](entry)
	require.NoError(t, err)
	assert.Equal(t, 55, payload.TrustScore)
}

func TestStoreListPaginationComplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const total = 23
	for i := 0; i < total; i++ {
		id := Identity{ProductName: fmt.Sprintf("product-%02d", i)}
		require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{TrustScore: i}))
	}

	for _, limit := range []int{1, 3, 7, total, total + 10} {
		seen := map[string]bool{}
		for offset := 0; ; offset += limit {
			count, page, err := s.List(ctx, limit, offset)
			require.NoError(t, err)
			assert.EqualValues(t, total, count)
			if len(page) == 0 {
				break
			}
			for _, sum := range page {
				assert.False(t, seen[sum.Key], "duplicate key %s at limit %d", sum.Key, limit)
				seen[sum.Key] = true
			}
		}
		assert.Len(t, seen, total, "limit %d must cover all entries", limit)
	}
}

func TestStoreListEdgeCases(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := Identity{ProductName: "OnlyOne"}
	require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{}))

	total, page, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Empty(t, page)

	total, page, err = s.List(ctx, 10, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Empty(t, page)
}

func TestStoreListOrderedByRecency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		id := Identity{ProductName: name}
		require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{}))
		time.Sleep(2 * time.Millisecond)
	}

	_, page, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "third", page[0].ProductName)
	assert.Equal(t, "first", page[2].ProductName)
	// Summaries never carry the payload; spot-check the shape instead.
	assert.NotEmpty(t, page[0].Key)
}

func TestStoreSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entries := []Identity{
		{ProductName: "FileZilla", CompanyName: "Tim Kosse"},
		{ProductName: "Slack", CompanyName: "Salesforce"},
		{ProductName: "7-Zip", CompanyName: "Igor Pavlov"},
	}
	for _, id := range entries {
		require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{}))
	}

	got, err := s.Search(ctx, "filezilla")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FileZilla", got[0].ProductName)

	// Company names match too.
	got, err = s.Search(ctx, "salesforce")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Slack", got[0].ProductName)

	got, err = s.Search(ctx, "no-such-product")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorePurge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh := Identity{ProductName: "fresh"}
	stale := Identity{ProductName: "stale"}
	require.NoError(t, s.Set(ctx, DeriveKey(fresh), fresh, testPayload{}))
	require.NoError(t, s.Set(ctx, DeriveKey(stale), stale, testPayload{}))

	// Age the stale row synthetically.
	aged := time.Now().UTC().Add(-40 * 24 * time.Hour).UnixNano()
	_, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET cached_at = ?, last_accessed = ? WHERE cache_key = ?`,
		aged, aged, DeriveKey(stale))
	require.NoError(t, err)

	removed, err := s.Purge(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = s.Get(ctx, DeriveKey(stale))
	assert.ErrorIs(t, err, ErrNotFound)
	entry, err := s.Get(ctx, DeriveKey(fresh))
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.AccessCount, "survivor metadata untouched by purge")

	// Idempotent.
	removed, err = s.Purge(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// Non-positive max age is a no-op, not an error.
	removed, err = s.Purge(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := Identity{ProductName: "Discord"}
	key := DeriveKey(id)
	require.NoError(t, s.Set(ctx, key, id, testPayload{}))

	removed, err := s.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStoreStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.Nil(t, stats.OldestEntry)

	for _, name := range []string{"a", "b"} {
		id := Identity{ProductName: name}
		require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{}))
	}
	_, err = s.Get(ctx, DeriveKey(Identity{ProductName: "a"}))
	require.NoError(t, err)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Entries)
	assert.EqualValues(t, 1, stats.TotalAccesses)
	require.NotNil(t, stats.OldestEntry)
	require.NotNil(t, stats.NewestEntry)
	assert.False(t, stats.NewestEntry.Before(*stats.OldestEntry))
}

func TestStoreDurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assessments.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	id := Identity{ProductName: "KeePass"}
	key := DeriveKey(id)
	require.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: 90}))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	entry, err := s2.Get(ctx, key)
	require.NoError(t, err)
	payload, err := Decode[testPayload](entry)
	require.NoError(t, err)
	assert.Equal(t, 90, payload.TrustScore)
}

func TestStoreConcurrentSameKeyWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := Identity{ProductName: "racer"}
	key := DeriveKey(id)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, key, id, testPayload{TrustScore: score}))
		}(i)
	}
	wg.Wait()

	entry, err := s.Get(ctx, key)
	require.NoError(t, err)
	payload, err := Decode[testPayload](entry)
	require.NoError(t, err)
	// One complete write wins; any of the written scores is acceptable.
	assert.GreaterOrEqual(t, payload.TrustScore, 0)
	assert.Less(t, payload.TrustScore, 8)
}

func TestStoreJanitorPurges(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "",
		WithPurgeAge(24*time.Hour),
		WithPurgeInterval(50*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	id := Identity{ProductName: "old"}
	require.NoError(t, s.Set(ctx, DeriveKey(id), id, testPayload{}))
	aged := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	_, err = s.db.ExecContext(ctx,
		`UPDATE assessments SET cached_at = ? WHERE cache_key = ?`, aged, DeriveKey(id))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, DeriveKey(id))
		return err != nil
	}, 2*time.Second, 25*time.Millisecond)
}
