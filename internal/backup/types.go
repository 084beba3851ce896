// Package backup copies the on-disk snapshot database on a schedule,
// keeps the newest copies, and optionally ships each one to S3.
package backup

import (
	"context"
	"strings"
	"time"
)

// Config controls periodic database backups.
type Config struct {
	Enabled  bool
	Interval time.Duration
	LocalDir string
	KeepLast int
	S3       S3Config
}

// S3Config addresses the bucket copies are shipped to. An empty BucketURL
// keeps backups local.
type S3Config struct {
	BucketURL    string // s3://bucket[/prefix]
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
}

func (c S3Config) enabled() bool { return strings.TrimSpace(c.BucketURL) != "" }

// Snapshotter copies the live database to a standalone file.
type Snapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// Uploader ships the backup taken at takenAt.
type Uploader interface {
	Upload(ctx context.Context, localPath string, takenAt time.Time) error
}
