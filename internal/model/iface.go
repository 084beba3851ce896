package model

import (
	"context"
	"time"
)

// SnapshotQuerier provides read-only access to stored snapshots.
type SnapshotQuerier interface {
	// SnapshotsSince returns every snapshot created strictly after since,
	// in no particular order.
	SnapshotsSince(ctx context.Context, since time.Time) ([]Snapshot, error)
}

// StatsQuerier provides cheap summary reads used by health and admin surfaces.
type StatsQuerier interface {
	TotalSnapshotCount(ctx context.Context) (int64, error)
	LatestSnapshotTime(ctx context.Context) (time.Time, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// SnapshotWriter provides append-oriented writes for ingested snapshots.
type SnapshotWriter interface {
	InsertSnapshotBatch(snaps []*Snapshot) error
}

// SnapshotSink accepts one snapshot for eventual persistence.
// The insert buffer implements it; Add must not block on storage IO.
type SnapshotSink interface {
	Add(snap *Snapshot)
}

// ReadAPI is the unified read contract for read surfaces (HTTP and socket RPC).
type ReadAPI interface {
	SnapshotQuerier
	StatsQuerier
	SchemaQuerier
}
