package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS analysis_results (
		identity TEXT PRIMARY KEY,
		product_url TEXT NOT NULL,
		payload BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_results_age ON analysis_results (stored_at, seq)`,
}

// SQLiteCache persists analysis results so they survive restarts. It follows
// the same TTL and eviction rules as MemoryCache.
type SQLiteCache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	// writes (including lazy expiry) are serialized
	writeMu sync.Mutex
	hits    atomic.Int64
	misses  atomic.Int64
	logger  *zap.SugaredLogger
}

// NewSQLiteCache opens (or creates) the cache database at dbPath
func NewSQLiteCache(dbPath string, ttl time.Duration, maxEntries int, logger *zap.SugaredLogger) (*SQLiteCache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open cache db")
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "migrate cache db")
		}
	}

	return &SQLiteCache{
		db:         db,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// Get returns the cached result for identity. Expired rows are deleted.
func (c *SQLiteCache) Get(ctx context.Context, identity domain.ProductIdentity) (*domain.AnalysisResult, error) {
	var payload []byte
	var storedAt, seq int64

	err := c.db.QueryRowContext(ctx,
		`SELECT payload, stored_at, seq FROM analysis_results WHERE identity = ?`,
		string(identity),
	).Scan(&payload, &storedAt, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache get")
	}

	if c.now().Sub(time.Unix(0, storedAt)) >= c.ttl {
		c.writeMu.Lock()
		_, err := c.db.ExecContext(ctx,
			`DELETE FROM analysis_results WHERE identity = ? AND seq = ?`, string(identity), seq)
		c.writeMu.Unlock()
		if err != nil {
			return nil, errors.Wrap(err, "cache expire")
		}
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.Wrapf(err, "decode cached result %s", identity)
	}
	c.hits.Add(1)
	return &result, nil
}

// Put stores result under identity, sweeping and evicting when full.
func (c *SQLiteCache) Put(ctx context.Context, identity domain.ProductIdentity, productURL string, result *domain.AnalysisResult) error {
	if result == nil {
		return errors.New("cannot cache nil result")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encode result")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "cache put: begin")
	}
	defer tx.Rollback()

	now := c.now()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_results WHERE identity = ?`, string(identity),
	).Scan(&exists); err != nil {
		return errors.Wrap(err, "cache put: lookup")
	}

	if exists == 0 && c.maxEntries > 0 {
		var size int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_results`).Scan(&size); err != nil {
			return errors.Wrap(err, "cache put: count")
		}
		if size >= c.maxEntries {
			if err := c.sweepTx(ctx, tx, now); err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_results`).Scan(&size); err != nil {
				return errors.Wrap(err, "cache put: recount")
			}
			if over := size - c.maxEntries + 1; over > 0 {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM analysis_results WHERE identity IN (
						SELECT identity FROM analysis_results ORDER BY stored_at, seq LIMIT ?
					)`, over); err != nil {
					return errors.Wrap(err, "cache put: evict")
				}
			}
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM analysis_results`,
	).Scan(&seq); err != nil {
		return errors.Wrap(err, "cache put: sequence")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_results (identity, product_url, payload, stored_at, seq)
		 VALUES (?, ?, ?, ?, ?)`,
		string(identity), productURL, payload, now.UnixNano(), seq,
	); err != nil {
		return errors.Wrap(err, "cache put: insert")
	}

	return errors.Wrap(tx.Commit(), "cache put: commit")
}

// Stats sweeps expired rows and reports remaining identities oldest first
func (c *SQLiteCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CacheStats{}, errors.Wrap(err, "cache stats: begin")
	}
	defer tx.Rollback()

	if err := c.sweepTx(ctx, tx, c.now()); err != nil {
		return domain.CacheStats{}, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT identity FROM analysis_results ORDER BY stored_at, seq`)
	if err != nil {
		return domain.CacheStats{}, errors.Wrap(err, "cache stats: list")
	}
	defer rows.Close()

	identities := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.CacheStats{}, errors.Wrap(err, "cache stats: scan")
		}
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return domain.CacheStats{}, errors.Wrap(err, "cache stats: rows")
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return domain.CacheStats{}, errors.Wrap(err, "cache stats: commit")
	}

	return domain.CacheStats{
		Size:       len(identities),
		Identities: identities,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}, nil
}

// Clear removes every cached result
func (c *SQLiteCache) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM analysis_results`); err != nil {
		return errors.Wrap(err, "cache clear")
	}
	c.logger.Infow("cache cleared")
	return nil
}

// Close closes the underlying database
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) sweepTx(ctx context.Context, tx *sql.Tx, now time.Time) error {
	cutoff := now.Add(-c.ttl).UnixNano()
	res, err := tx.ExecContext(ctx, `DELETE FROM analysis_results WHERE stored_at <= ?`, cutoff)
	if err != nil {
		return errors.Wrap(err, "cache sweep")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.logger.Debugw("swept expired entries", "count", n)
	}
	return nil
}
