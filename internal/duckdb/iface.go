package duckdb

import "github.com/tinytelemetry/pulse/internal/model"

var (
	_ model.ReadAPI        = (*Store)(nil)
	_ model.SnapshotWriter = (*Store)(nil)
	_ model.SnapshotSink   = (*InsertBuffer)(nil)
)
