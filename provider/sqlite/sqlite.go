// Package sqlite is the "filesystem" backend: entries live in a single SQLite
// file under a configured directory, so they survive restarts and can be shared
// by processes on the same host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// FileName is the database file created inside Config.Dir.
const FileName = "querycache.db"

type Provider struct {
	db *sql.DB

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Shared   = (*Provider)(nil)
)

type Config struct {
	Dir         string        // required; created if missing
	ExpiryCheck time.Duration // 0 => 1m; sweep interval for expired rows
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Dir == "" {
		return nil, errors.New("sqlite provider: Dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite provider: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(cfg.Dir, FileName))
	if err != nil {
		return nil, err
	}
	// one connection serializes Incr's read-modify-write
	db.SetMaxOpenConns(1)

	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, err
		}
	}

	p := &Provider{db: db, stopCh: make(chan struct{})}
	interval := cfg.ExpiryCheck
	if interval <= 0 {
		interval = time.Minute
	}
	p.wg.Add(1)
	go p.sweep(interval)
	return p, nil
}

// Shared is true: other processes may open the same file.
func (p *Provider) Shared() bool { return true }

// expires_at 0 => no expiry
func deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

func live(expiresAt int64) bool {
	return expiresAt == 0 || expiresAt > time.Now().UnixNano()
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var expiresAt int64
	err := p.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !live(expiresAt) {
		return nil, false, nil
	}
	return data, true, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (p *Provider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT key, value, expires_at FROM cache WHERE key IN (`+placeholders(len(keys))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v []byte
		var exp int64
		if err := rows.Scan(&k, &v, &exp); err != nil {
			return nil, err
		}
		if live(exp) {
			out[k] = v
		}
	}
	return out, rows.Err()
}

const upsert = `INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.db.ExecContext(ctx, upsert, key, value, deadline(ttl))
	return err
}

func (p *Provider) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	exp := deadline(ttl)
	return p.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsert)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for k, v := range items {
			if _, err := stmt.ExecContext(ctx, k, v, exp); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Provider) DelMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM cache WHERE key IN (`+placeholders(len(keys))+`)`, args...)
	return err
}

// Incr keeps the deadline of a live counter; an absent or expired one
// restarts at delta with a fresh ttl.
func (p *Provider) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var n int64
	err := p.tx(ctx, func(tx *sql.Tx) error {
		var data []byte
		var exp int64
		err := tx.QueryRowContext(ctx,
			`SELECT value, expires_at FROM cache WHERE key = ?`, key,
		).Scan(&data, &exp)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			n, exp = delta, deadline(ttl)
		case err != nil:
			return err
		case !live(exp):
			n, exp = delta, deadline(ttl)
		default:
			cur, err := pr.ParseInt(data)
			if err != nil {
				return err
			}
			n = cur + delta
		}
		_, err = tx.ExecContext(ctx, upsert, key, pr.FormatInt(n), exp)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *Provider) sweep(interval time.Duration) {
	defer p.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			_, _ = p.db.Exec(`DELETE FROM cache WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
		}
	}
}

func (p *Provider) Close(_ context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		err = p.db.Close()
	})
	return err
}
