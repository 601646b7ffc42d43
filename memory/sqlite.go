package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // cgo-free sqlite driver

	"github.com/hupe1980/trinity/core"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS agent_memory (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);`

// SQLiteStore is a durable core.Store backed by an embedded SQLite database.
// It satisfies the persistent memory binding contract: TTL-bounded entries
// survive process restarts, expired rows are treated as absent on read and
// removed by a periodic background sweep.
type SQLiteStore struct {
	db     *sql.DB
	stop   chan struct{}
	once   sync.Once
	closed sync.WaitGroup
}

var _ core.Store = (*SQLiteStore)(nil)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// SweepInterval is the cadence of the expired-row sweep. Defaults to
	// 5 minutes; set negative to disable the sweeper.
	SweepInterval time.Duration
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// prepares the key-value schema. Use ":memory:" for an in-process database
// in tests.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{SweepInterval: 5 * time.Minute}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent agents.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createKVTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create memory schema: %w", err)
	}

	s := &SQLiteStore{db: db, stop: make(chan struct{})}
	if opts.SweepInterval > 0 {
		s.closed.Add(1)
		go s.sweep(opts.SweepInterval)
	}
	return s, nil
}

// Get returns the value for key, treating expired rows as absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM agent_memory WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM agent_memory WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Put writes value under key, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_memory (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_memory WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close stops the sweeper and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.closed.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) sweep(interval time.Duration) {
	defer s.closed.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_, _ = s.db.Exec(`DELETE FROM agent_memory WHERE expires_at > 0 AND expires_at < ?`, time.Now().UnixNano())
		}
	}
}
