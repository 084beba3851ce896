package duckdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tinytelemetry/pulse/internal/journal"
	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// Insert buffer defaults.
const (
	DefaultBatchSize      = 500
	DefaultFlushInterval  = time.Second
	DefaultFlushQueueSize = 64
)

type journaledSnapshot struct {
	seq  uint64
	snap *model.Snapshot
}

type durableJournal interface {
	Append(snap *model.Snapshot) (uint64, error)
	Commit(seq uint64) error
	Close() error
}

// InsertBuffer batches snapshots and flushes them to DuckDB asynchronously.
// Add never blocks on DuckDB writes; batches go to a flush goroutine.
type InsertBuffer struct {
	writer        model.SnapshotWriter
	mu            sync.Mutex
	pending       []journaledSnapshot
	stopped       bool // guarded by mu
	flushChan     chan []journaledSnapshot
	sendMu        sync.RWMutex
	queueClosed   bool // guarded by sendMu
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once
	journal       durableJournal

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix seconds
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Journal        *journal.Journal
}

// NewInsertBuffer creates an insert buffer that flushes to writer.
func NewInsertBuffer(writer model.SnapshotWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := DefaultBatchSize
	flushInterval := DefaultFlushInterval
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]journaledSnapshot, 0, batchSize),
		flushChan:     make(chan []journaledSnapshot, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
	if len(conf) > 0 && conf[0].Journal != nil {
		b.journal = conf[0].Journal
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure emits at most one warning per 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	metrics.InsertBackpressure.Inc()
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		logging.Warn().Str("component", "duckdb").Int64("inline_flushes", count).
			Msg("backpressure: flush queue full, DuckDB falling behind")
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]journaledSnapshot, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch, "tick")
}

// enqueue hands batch to the flush worker, flushing inline when the queue is
// full or already closed.
func (b *InsertBuffer) enqueue(batch []journaledSnapshot, origin string) {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.queueClosed {
		if err := b.flushBatch(batch); err != nil {
			logging.Error().Str("component", "duckdb").Str("origin", origin).Err(err).Msg("inline flush failed")
		}
		return
	}
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		if err := b.flushBatch(batch); err != nil {
			logging.Error().Str("component", "duckdb").Str("origin", origin).Err(err).Msg("inline flush failed")
		}
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.flushBatch(batch); err != nil {
			logging.Error().Str("component", "duckdb").Err(err).Msg("flush failed")
		}
	}
}

// Add queues a snapshot for batch insertion. It never blocks on DuckDB IO.
// Snapshots added after Stop are dropped.
func (b *InsertBuffer) Add(snap *model.Snapshot) {
	select {
	case <-b.done:
		logging.Warn().Str("component", "duckdb").Str("id", snap.ID).Msg("insert buffer stopped, dropping snapshot")
		return
	default:
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	seq := uint64(0)
	if b.journal != nil {
		for {
			var err error
			seq, err = b.journal.Append(snap)
			if err == nil {
				break
			}
			logging.Warn().Str("component", "duckdb").Err(err).Msg("journal append failed, retrying")
			select {
			case <-b.done:
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		logging.Warn().Str("component", "duckdb").Str("id", snap.ID).Msg("insert buffer stopped, dropping snapshot")
		return
	}
	b.pending = append(b.pending, journaledSnapshot{seq: seq, snap: snap})
	var batch []journaledSnapshot
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]journaledSnapshot, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch, "overflow")
	}
}

// Stop flushes remaining snapshots and waits for all writes to complete.
// It is safe to call more than once.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		// The final drain must reach flushChan before it closes.
		b.tickWg.Wait()
		b.sendMu.Lock()
		b.queueClosed = true
		close(b.flushChan)
		b.sendMu.Unlock()
		b.wg.Wait()

		// Adds that passed the done check before it closed land here.
		b.mu.Lock()
		b.stopped = true
		rest := b.pending
		b.pending = nil
		b.mu.Unlock()
		if err := b.flushBatch(rest); err != nil {
			logging.Error().Str("component", "duckdb").Err(err).Msg("final flush failed")
		}
		if b.journal != nil {
			if err := b.journal.Close(); err != nil {
				logging.Error().Str("component", "duckdb").Err(err).Msg("journal close failed")
			}
		}
	})
}

func (b *InsertBuffer) flushBatch(batch []journaledSnapshot) error {
	if len(batch) == 0 {
		return nil
	}

	snaps := make([]*model.Snapshot, 0, len(batch))
	maxSeq := uint64(0)
	for _, item := range batch {
		snaps = append(snaps, item.snap)
		maxSeq = max(maxSeq, item.seq)
	}

	if err := b.writer.InsertSnapshotBatch(snaps); err != nil {
		return err
	}

	if b.journal != nil && maxSeq > 0 {
		if err := b.journal.Commit(maxSeq); err != nil {
			return fmt.Errorf("journal commit seq=%d: %w", maxSeq, err)
		}
	}
	return nil
}

// InsertSnapshotBatch writes snaps in a single transaction. If the batch
// fails it is retried one snapshot at a time and the failures are dropped.
func (s *Store) InsertSnapshotBatch(snaps []*model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertBatchTx(ctx, snaps); err == nil {
		metrics.SnapshotsInserted.Add(float64(len(snaps)))
		return nil
	}

	var failed int
	for _, snap := range snaps {
		if err := s.insertBatchTx(ctx, []*model.Snapshot{snap}); err != nil {
			failed++
			logging.Warn().Str("component", "duckdb").Str("id", snap.ID).Str("server_core", snap.ServerCore).
				Err(err).Msg("dropping snapshot")
			continue
		}
		metrics.SnapshotsInserted.Inc()
	}
	if failed > 0 {
		logging.Warn().Str("component", "duckdb").Int("dropped", failed).Int("batch", len(snaps)).
			Msg("batch partially failed")
	}
	return nil
}

const insertSnapshotSQL = `INSERT INTO snapshots (
	id, server_core, server_version, os_name, os_version, os_architecture, java_version,
	cpu_cores, total_ram, location, project_version, project_language,
	online_mode, proxy_mode, database_mode, player_count, modules, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) insertBatchTx(ctx context.Context, snaps []*model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSnapshotSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range snaps {
		modules, err := encodeModules(r.Modules)
		if err != nil {
			return fmt.Errorf("encode modules: %w", err)
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			id, r.ServerCore, r.ServerVersion, r.OSName, r.OSVersion, r.OSArchitecture, r.RuntimeVersion,
			r.CPUCores, r.TotalRAM, r.Location, r.ProjectVersion, r.ProjectLanguage,
			r.OnlineMode, r.ProxyMode, r.DatabaseMode, r.PlayerCount, modules, r.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("snapshot insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func encodeModules(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeModules(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" || s == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
