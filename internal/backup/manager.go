package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/pulse/internal/logging"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	filePrefix = "pulse-"
	fileSuffix = ".duckdb"
	timeLayout = "20060102-150405"
)

// Manager runs periodic local backups and optional remote uploads.
type Manager struct {
	store    Snapshotter
	cfg      Config
	uploader Uploader
	now      func() time.Time
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewManager validates cfg, takes a startup backup, and starts the periodic
// loop. It returns nil when backups are disabled.
func NewManager(store Snapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, errors.New("backup: nil snapshotter")
	}
	if strings.TrimSpace(store.DBPath()) == "" {
		return nil, errors.New("backup: db-path is empty (in-memory store)")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, errors.New("backup: local-dir is required when backup is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create local-dir: %w", err)
	}

	var uploader Uploader
	if cfg.S3.enabled() {
		s3u, err := NewS3Uploader(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("backup: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	m := newManager(store, cfg, uploader)

	if err := m.RunOnce(m.ctx); err != nil {
		m.log.Warn().Err(err).Msg("startup backup failed")
	}

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(store Snapshotter, cfg Config, uploader Uploader) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		cfg:      cfg,
		uploader: uploader,
		now:      time.Now,
		log:      logging.Component("backup"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.RunOnce(m.ctx); err != nil && m.ctx.Err() == nil {
				m.log.Warn().Err(err).Msg("periodic backup failed")
			}
		case <-m.done:
			return
		}
	}
}

// FileName returns the backup file name for a backup taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.UTC().Format(timeLayout) + fileSuffix
}

// RunOnce writes one local backup, uploads it when configured, and prunes
// old local copies.
func (m *Manager) RunOnce(ctx context.Context) error {
	takenAt := m.now()
	localPath := filepath.Join(m.cfg.LocalDir, FileName(takenAt))

	if err := m.store.SnapshotTo(localPath); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}
	m.log.Info().Str("path", localPath).Msg("backup created")

	if m.uploader != nil {
		if err := m.uploader.Upload(ctx, localPath, takenAt); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		m.log.Info().Str("file", filepath.Base(localPath)).Msg("backup uploaded")
	}

	removed, err := pruneLocalBackups(m.cfg.LocalDir, m.cfg.KeepLast)
	if err != nil {
		return fmt.Errorf("prune local backups: %w", err)
	}
	if removed > 0 {
		m.log.Debug().Int("removed", removed).Msg("pruned old backups")
	}
	return nil
}

// Stop cancels any in-flight upload and waits for the loop to exit.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		m.cancel()
		close(m.done)
		m.wg.Wait()
	})
}

// pruneLocalBackups keeps the newest keepLast backups in localDir.
// The timestamp layout sorts lexically in time order.
func pruneLocalBackups(localDir string, keepLast int) (int, error) {
	if keepLast <= 0 {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(localDir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return 0, err
	}
	if len(matches) <= keepLast {
		return 0, nil
	}

	slices.Sort(matches)
	slices.Reverse(matches)

	removed := 0
	for _, oldPath := range matches[keepLast:] {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
