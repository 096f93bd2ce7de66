package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no entry exists for a key. Callers
// treat it as "no cached value", not as a system failure.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one persisted assessment with its access metadata. Payload holds
// the msgpack-encoded assessment document; use Decode to recover the typed
// value.
type Entry struct {
	Key          string
	ProductName  string
	CompanyName  string
	SHA1         string
	URL          string
	Payload      []byte
	CachedAt     time.Time
	LastAccessed time.Time
	AccessCount  int64
}

// Summary is the payload-free projection of an entry used by listing and
// search so pages stay cheap to produce.
type Summary struct {
	Key          string    `json:"cache_key"`
	ProductName  string    `json:"product_name"`
	CompanyName  string    `json:"company_name,omitempty"`
	CachedAt     time.Time `json:"cached_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int64     `json:"access_count"`
}

// Stats aggregates store-wide counters.
type Stats struct {
	Entries       int64      `json:"total_entries"`
	TotalAccesses int64      `json:"total_accesses"`
	OldestEntry   *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry   *time.Time `json:"newest_entry,omitempty"`
}

// Store is a durable, SQLite-backed cache of assessment results keyed by
// the derived identity digest. It is safe for concurrent use; same-key
// writes resolve last-write-wins through a single upsert statement.
type Store struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once

	purgeAge   time.Duration
	purgeEvery time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPurgeAge enables the background janitor: entries older than age are
// purged on an interval. Zero leaves purging fully manual.
func WithPurgeAge(age time.Duration) Option {
	return func(s *Store) { s.purgeAge = age }
}

// WithPurgeInterval sets how often the janitor runs. Defaults to one hour.
func WithPurgeInterval(d time.Duration) Option {
	return func(s *Store) { s.purgeEvery = d }
}

// Open creates or opens the assessment store at path. An empty path opens
// an in-memory database, which is what tests use. Open fails rather than
// degrade silently when the backing file is unusable.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	// WAL lets concurrent readers proceed during writes; busy_timeout makes
	// same-key write races queue instead of failing with SQLITE_BUSY.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure store: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS assessments (
		cache_key     TEXT PRIMARY KEY,
		product_name  TEXT NOT NULL,
		company_name  TEXT,
		sha1          TEXT,
		url           TEXT,
		payload       BLOB NOT NULL,
		cached_at     INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL,
		access_count  INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_assessments_product_name ON assessments(product_name)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_cached_at ON assessments(cached_at)`,
	} {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	childCtx, cancel := context.WithCancel(ctx)
	s := &Store{
		db:         db,
		ctx:        childCtx,
		cancel:     cancel,
		purgeEvery: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.purgeAge > 0 {
		s.waitGroup.Add(1)
		go s.janitor()
	}

	return s, nil
}

// Close stops the janitor and closes the database. Safe to call twice.
func (s *Store) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

// Get returns the entry for key and records the access: access_count is
// incremented and last_accessed set to now before the row is returned, so
// the returned AccessCount already includes this read. A miss returns
// ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	now := time.Now().UTC().UnixNano()
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET access_count = access_count + 1, last_accessed = ? WHERE cache_key = ?`,
		now, key)
	if err != nil {
		return nil, fmt.Errorf("touch entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("touch entry: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	var (
		e                      Entry
		company, sha1, url     sql.NullString
		cachedAt, lastAccessed int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT cache_key, product_name, company_name, sha1, url, payload, cached_at, last_accessed, access_count
		 FROM assessments WHERE cache_key = ?`, key).
		Scan(&e.Key, &e.ProductName, &company, &sha1, &url, &e.Payload, &cachedAt, &lastAccessed, &e.AccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted between the touch and the read; treat as a plain miss.
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	e.CompanyName = company.String
	e.SHA1 = sha1.String
	e.URL = url.String
	e.CachedAt = time.Unix(0, cachedAt).UTC()
	e.LastAccessed = time.Unix(0, lastAccessed).UTC()
	return &e, nil
}

// Set persists payload under key, creating the entry or replacing it
// wholesale on a forced refresh. The payload is serialized before any
// write, so a serialization failure leaves a pre-existing entry untouched.
// Both timestamps reset to now and access_count restarts at zero; the
// first subsequent Get therefore observes access_count == 1.
func (s *Store) Set(ctx context.Context, key string, id Identity, payload any) error {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (cache_key, product_name, company_name, sha1, url, payload, cached_at, last_accessed, access_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(cache_key) DO UPDATE SET
			product_name = excluded.product_name,
			company_name = excluded.company_name,
			sha1 = excluded.sha1,
			url = excluded.url,
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			last_accessed = excluded.last_accessed,
			access_count = 0`,
		key, id.ProductName, id.CompanyName, id.SHA1, id.URL, data, now, now)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Delete removes a single entry. The bool reports whether anything existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE cache_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	return affected > 0, nil
}

// List returns the total entry count plus one page of summaries ordered
// most-recently-cached first, tie-broken by key so pagination stays stable
// when timestamps collide. Offsets beyond the end and a zero limit both
// yield an empty page.
func (s *Store) List(ctx context.Context, limit, offset int) (int64, []Summary, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count entries: %w", err)
	}
	if limit <= 0 || offset < 0 {
		return total, []Summary{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, product_name, company_name, cached_at, last_accessed, access_count
		 FROM assessments
		 ORDER BY cached_at DESC, cache_key DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return 0, nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, summaries, nil
}

// Search returns summaries whose product or company name contains the
// given substring, case-insensitively, newest first. No matches is an
// empty result, not an error.
func (s *Store) Search(ctx context.Context, substring string) ([]Summary, error) {
	pattern := "%" + substring + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, product_name, company_name, cached_at, last_accessed, access_count
		 FROM assessments
		 WHERE product_name LIKE ? OR company_name LIKE ?
		 ORDER BY cached_at DESC, cache_key DESC`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Purge deletes every entry cached longer ago than maxAge and reports how
// many were removed. Idempotent; maxAge <= 0 is a no-op.
func (s *Store) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	return removed, nil
}

// Stats reports store-wide aggregates for the stats endpoint.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st             Stats
		accesses       sql.NullInt64
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(access_count), MIN(cached_at), MAX(cached_at) FROM assessments`).
		Scan(&st.Entries, &accesses, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	st.TotalAccesses = accesses.Int64
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		st.OldestEntry = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64).UTC()
		st.NewestEntry = &t
	}
	return st, nil
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	summaries := []Summary{}
	for rows.Next() {
		var (
			sum                    Summary
			company                sql.NullString
			cachedAt, lastAccessed int64
		)
		if err := rows.Scan(&sum.Key, &sum.ProductName, &company, &cachedAt, &lastAccessed, &sum.AccessCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.CompanyName = company.String
		sum.CachedAt = time.Unix(0, cachedAt).UTC()
		sum.LastAccessed = time.Unix(0, lastAccessed).UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan summaries: %w", err)
	}
	return summaries, nil
}

// Decode unmarshals an entry payload into the requested type.
func Decode[T any](e *Entry) (T, error) {
	var out T
	if err := msgpack.Unmarshal(e.Payload, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func (s *Store) janitor() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.purgeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Purge(s.ctx, s.purgeAge)
			if err != nil {
				log.Warn().Err(err).Msg("scheduled cache purge failed")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("scheduled cache purge")
			}
		}
	}
}
