package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/pulse/internal/backup"
	"github.com/tinytelemetry/pulse/internal/demo"
	"github.com/tinytelemetry/pulse/internal/draw"
	"github.com/tinytelemetry/pulse/internal/draw/svg"
	"github.com/tinytelemetry/pulse/internal/duckdb"
	"github.com/tinytelemetry/pulse/internal/hourcache"
	"github.com/tinytelemetry/pulse/internal/httpserver"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/journal"
	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/report"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

const shutdownDeadline = 10 * time.Second

// runServer wires storage, ingestion and the chart surfaces, then blocks
// until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Timestamp: true,
		Output:    os.Stderr,
	})
	log := logging.Component("server")

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()
	store.SetMaxConcurrentQueries(cfg.MaxConcurrentQueries)

	var ingestJournal *journal.Journal
	if cfg.JournalEnabled {
		ingestJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open ingest journal: %w", err)
		}
		if err := replayUncommittedJournal(ingestJournal, store, cfg.InsertBatchSize); err != nil {
			_ = ingestJournal.Close()
			return fmt.Errorf("failed to replay ingest journal: %w", err)
		}
	}

	insertBuffer := duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
		Journal:        ingestJournal,
	})
	defer insertBuffer.Stop()

	if cfg.SeedDemoData {
		n, err := demo.SeedIfEmpty(context.Background(), store, time.Now(), rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
		if err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		if n > 0 {
			log.Info().Int("snapshots", n).Msg("seeded demo data")
		}
	}

	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.RetentionDays,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	backupManager, err := backup.NewManager(store, backup.Config{
		Enabled:  cfg.BackupEnabled,
		Interval: cfg.BackupInterval,
		LocalDir: cfg.BackupLocalDir,
		KeepLast: cfg.BackupKeepLast,
		S3: backup.S3Config{
			BucketURL:    cfg.BackupBucketURL,
			Endpoint:     cfg.BackupS3Endpoint,
			Region:       cfg.BackupS3Region,
			AccessKey:    cfg.BackupS3AccessKey,
			SecretKey:    cfg.BackupS3SecretKey,
			SessionToken: cfg.BackupS3SessionToken,
			UseSSL:       cfg.BackupS3UseSSL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	reports := report.NewService(store, svg.Encoder{})
	if cfg.PaletteFile != "" {
		palette, err := draw.LoadPalette(cfg.PaletteFile)
		if err != nil {
			return fmt.Errorf("failed to load palette: %w", err)
		}
		reports.Palette = palette
	}
	chartCache := hourcache.New(cfg.CacheSize)

	var geo ingest.Geolocator = ingest.FixedLocation(model.UnknownLocation)
	if cfg.GeoEnabled {
		geo = ingest.NewIPAPI(ingest.IPAPIConfig{
			BaseURL:       cfg.GeoBaseURL,
			RatePerMinute: cfg.GeoRatePerMinute,
		})
	}
	pipeline := ingest.NewPipeline(insertBuffer, ingest.NewThrottle(cfg.ThrottleWindow, cfg.ThrottleSize), geo)

	apiServer := httpserver.NewServer(cfg.APIAddr, store, reports, pipeline, chartCache)
	apiServer.AdminAddr = cfg.AdminAddr
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	sockServer := socketrpc.NewServer(cfg.SocketPath, store, reports)
	socketUp := true
	if err := sockServer.Start(); err != nil {
		socketUp = false
		log.Warn().Err(err).Str("path", cfg.SocketPath).Msg("socket server not started")
	} else {
		defer sockServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(shutdownDeadline)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg, socketUp)

	loops := []serveLoop{{
		name: "http",
		wait: apiServer.Wait,
		stop: func() { _ = apiServer.Stop() },
	}}
	if socketUp {
		loops = append(loops, serveLoop{name: "socket", wait: sockServer.Wait, stop: sockServer.Stop})
	}
	err = supervise(ctx, loops)
	signal.Stop(sigCh)
	if err != nil {
		log.Error().Err(err).Msg("listener failed, shutting down")
		return err
	}
	return nil
}

// serveLoop is one background listener under supervision.
type serveLoop struct {
	name string
	wait func() error
	stop func()
}

// supervise blocks until ctx ends or a loop fails, then stops every loop and
// waits for them. It returns the first failure.
func supervise(ctx context.Context, loops []serveLoop) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			if err := l.wait(); err != nil {
				return fmt.Errorf("%s: %w", l.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, l := range loops {
			l.stop()
		}
		return nil
	})
	return g.Wait()
}

func cleanupSocket(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

// replayUncommittedJournal writes journaled snapshots that never reached
// DuckDB before the last shutdown.
func replayUncommittedJournal(j *journal.Journal, writer model.SnapshotWriter, batchSize int) error {
	if j == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	batch := make([]*model.Snapshot, 0, batchSize)
	batchMaxSeq := uint64(0)
	replayed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.InsertSnapshotBatch(batch); err != nil {
			return err
		}
		if batchMaxSeq > 0 {
			if err := j.Commit(batchMaxSeq); err != nil {
				return err
			}
		}
		replayed += len(batch)
		batch = make([]*model.Snapshot, 0, batchSize)
		batchMaxSeq = 0
		return nil
	}

	if err := j.Replay(func(seq uint64, snap *model.Snapshot) error {
		batch = append(batch, snap)
		if seq > batchMaxSeq {
			batchMaxSeq = seq
		}
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	}); err != nil {
		return err
	}

	if err := flush(); err != nil {
		return err
	}
	if replayed > 0 {
		logging.Info().Str("component", "journal").Int("snapshots", replayed).Msg("replayed uncommitted snapshots")
	}
	return nil
}
