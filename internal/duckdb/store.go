// Package duckdb persists snapshots in DuckDB and serves the read queries
// behind the charts and the admin surfaces.
package duckdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/semaphore"

	"github.com/tinytelemetry/pulse/internal/duckdb/migrate"
)

const dsnConfig = "enable_external_access=false"

// DefaultQueryTimeout bounds every store query unless NewStore is given another.
const DefaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB database connection and provides query methods.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	QueryTimeout time.Duration

	readMu sync.RWMutex
	reads  *semaphore.Weighted
}

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}
	// SQL can reach nothing outside the database file: no file table
	// functions, COPY, ATTACH or extension downloads. DuckDB refuses to
	// flip this back while the database is open.
	dsn += "?" + dsnConfig

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, err
	}

	qt := DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// SetMaxConcurrentQueries caps how many read queries run at once.
// Zero or less removes the cap.
func (s *Store) SetMaxConcurrentQueries(n int) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if n <= 0 {
		s.reads = nil
		return
	}
	s.reads = semaphore.NewWeighted(int64(n))
}

// acquireRead blocks until a read slot is free or ctx ends.
func (s *Store) acquireRead(ctx context.Context) (release func(), err error) {
	s.readMu.RLock()
	sem := s.reads
	s.readMu.RUnlock()
	if sem == nil {
		return func() {}, nil
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}
