package duckdb

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/pulse/internal/logging"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	// Interval between purges; defaults to one hour.
	Interval time.Duration
}

// RetentionCleaner periodically deletes snapshots older than the retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	now           func() time.Time
	log           zerolog.Logger
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner creates a retention cleaner and runs one purge right
// away. It returns nil when RetentionDays is 0, which keeps data forever.
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}
	interval := conf.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: conf.RetentionDays,
		interval:      interval,
		now:           time.Now,
		log:           logging.Component("duckdb"),
		done:          make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()
	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

// Cutoff returns the oldest creation time that survives a purge at now.
func (rc *RetentionCleaner) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(rc.retentionDays) * 24 * time.Hour)
}

func (rc *RetentionCleaner) cleanup() {
	rows, err := rc.store.DeleteBefore(rc.Cutoff(rc.now()))
	if err != nil {
		rc.log.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	if rows > 0 {
		rc.log.Info().Int64("rows", rows).Int("retention_days", rc.retentionDays).
			Msg("retention cleanup deleted expired snapshots")
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	if rc == nil {
		return
	}
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
