package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/model"
)

// MaxQueryRows caps the rows returned by ExecuteQuery.
const MaxQueryRows = 1000

// dangerousKeywordPattern matches write and side-effect keywords at word
// boundaries, so "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|CHECKPOINT)\b`,
)

// fileFunctionPattern matches table functions that read host files or
// remote URLs.
var fileFunctionPattern = regexp.MustCompile(
	`(?i)\b(read_\w+|glob|sniff_csv|parquet_\w+|\w+_scan|query_table|getenv)\s*\(`,
)

var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// readCtx derives a timeout context from parent and takes a read slot.
func (s *Store) readCtx(parent context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(parent, s.QueryTimeout)
	release, err := s.acquireRead(ctx)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("waiting for read slot: %w", err)
	}
	return ctx, func() { release(); cancel() }, nil
}

const snapshotColumns = `id, server_core, server_version, os_name, os_version, os_architecture, java_version,
	cpu_cores, total_ram, location, project_version, project_language,
	online_mode, proxy_mode, database_mode, player_count, modules, created_at`

// SnapshotsSince returns every snapshot created strictly after since.
// CreatedAt comes back in UTC.
func (s *Store) SnapshotsSince(ctx context.Context, since time.Time) ([]model.Snapshot, error) {
	ctx, done, err := s.readCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE created_at > ?`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var (
			r       model.Snapshot
			modules string
		)
		if err := rows.Scan(
			&r.ID, &r.ServerCore, &r.ServerVersion, &r.OSName, &r.OSVersion, &r.OSArchitecture, &r.RuntimeVersion,
			&r.CPUCores, &r.TotalRAM, &r.Location, &r.ProjectVersion, &r.ProjectLanguage,
			&r.OnlineMode, &r.ProxyMode, &r.DatabaseMode, &r.PlayerCount, &modules, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if r.Modules, err = decodeModules(modules); err != nil {
			logging.Warn().Str("component", "duckdb").Str("id", r.ID).Err(err).Msg("unreadable modules column")
			r.Modules = map[string]string{}
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalSnapshotCount returns the number of stored snapshots.
func (s *Store) TotalSnapshotCount(ctx context.Context) (int64, error) {
	ctx, done, err := s.readCtx(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LatestSnapshotTime returns the newest created_at, or the zero time when
// the store is empty.
func (s *Store) LatestSnapshotTime(ctx context.Context) (time.Time, error) {
	ctx, done, err := s.readCtx(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM snapshots`).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time.UTC(), nil
}

// DeleteBefore removes snapshots created before cutoff and reports how many went.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ErrReadOnlyQuery is wrapped by every ExecuteQuery rejection.
var ErrReadOnlyQuery = errors.New("only read-only queries are allowed")

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH queries are allowed; DDL and DML are rejected.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)

	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("%w: query must not contain semicolons", ErrReadOnlyQuery)
	}

	// Keywords hidden in comments are still caught after stripping.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("%w: query must start with SELECT or WITH", ErrReadOnlyQuery)
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("%w: disallowed keyword %s", ErrReadOnlyQuery, strings.ToUpper(match))
	}
	if match := fileFunctionPattern.FindStringSubmatch(stripped); match != nil {
		return nil, fmt.Errorf("%w: disallowed function %s", ErrReadOnlyQuery, strings.ToLower(match[1]))
	}

	ctx, done, err := s.readCtx(context.Background())
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() && len(results) < MaxQueryRows {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			logging.Warn().Str("component", "duckdb").Err(err).Msg("scan error (ExecuteQuery)")
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable description of the queryable tables.
func (s *Store) GetSchemaDescription() string {
	return `Table 'snapshots': id (VARCHAR uuid), server_core (VARCHAR), server_version (VARCHAR), ` +
		`os_name (VARCHAR), os_version (VARCHAR), os_architecture (VARCHAR), java_version (VARCHAR), ` +
		`cpu_cores (INTEGER), total_ram (BIGINT bytes), location (VARCHAR country), ` +
		`project_version (VARCHAR), project_language (VARCHAR), online_mode (VARCHAR), ` +
		`proxy_mode (VARCHAR), database_mode (VARCHAR), player_count (INTEGER), ` +
		`modules (VARCHAR JSON object name -> "enabled"/"disabled"), created_at (TIMESTAMP UTC).`
}

// TableRowCounts returns the row count for each known table.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	ctx, done, err := s.readCtx(context.Background())
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	allowedTables := []string{"snapshots", "schema_migrations"}
	counts := make(map[string]int64, len(allowedTables))
	for _, table := range allowedTables {
		var count int64
		// Table names are constants, not user input.
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		counts[table] = count
	}
	return counts, nil
}
