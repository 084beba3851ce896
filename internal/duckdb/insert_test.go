package duckdb

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/journal"
	"github.com/tinytelemetry/pulse/internal/model"
)

func countSnapshots(t *testing.T, store *Store) int64 {
	t.Helper()
	n, err := store.TotalSnapshotCount(context.Background())
	if err != nil {
		t.Fatalf("TotalSnapshotCount: %v", err)
	}
	return n
}

func TestInsertBuffer_AddAndStop(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)

	for i := 0; i < 10; i++ {
		buf.Add(testSnapshot("Paper", time.Now()))
	}
	buf.Stop()

	if n := countSnapshots(t, store); n != 10 {
		t.Errorf("after Stop, count = %d, want 10", n)
	}
}

func TestInsertBuffer_BatchThreshold(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, InsertBufferConfig{BatchSize: 50, FlushInterval: time.Hour})

	for i := 0; i < 120; i++ {
		buf.Add(testSnapshot("Paper", time.Now()))
	}

	// two full batches go out without waiting for the ticker
	deadline := time.Now().Add(5 * time.Second)
	for countSnapshots(t, store) < 100 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := countSnapshots(t, store); n != 100 {
		t.Errorf("before Stop, count = %d, want 100", n)
	}

	buf.Stop()
	if n := countSnapshots(t, store); n != 120 {
		t.Errorf("after Stop, count = %d, want 120", n)
	}
}

func TestInsertBuffer_ConcurrentAdd(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, InsertBufferConfig{BatchSize: 7, FlushQueueSize: 1})

	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 50
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				buf.Add(testSnapshot("Folia", time.Now()))
			}
		}()
	}
	wg.Wait()
	buf.Stop()

	if n := countSnapshots(t, store); n != goroutines*perGoroutine {
		t.Errorf("concurrent count = %d, want %d", n, goroutines*perGoroutine)
	}
}

func TestInsertBuffer_StopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)

	buf.Add(testSnapshot("Paper", time.Now()))
	buf.Stop()
	buf.Stop()

	// dropped, not panicking on a closed queue
	buf.Add(testSnapshot("late", time.Now()))

	if n := countSnapshots(t, store); n != 1 {
		t.Errorf("after double Stop, count = %d, want 1", n)
	}
}

type countingWriter struct {
	mu sync.Mutex
	n  int
}

func (w *countingWriter) InsertSnapshotBatch(snaps []*model.Snapshot) error {
	w.mu.Lock()
	w.n += len(snaps)
	w.mu.Unlock()
	return nil
}

func TestInsertBuffer_AddDuringStop(t *testing.T) {
	w := &countingWriter{}
	buf := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 1, FlushQueueSize: 1})

	const goroutines, perGoroutine = 8, 200
	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < perGoroutine; i++ {
				buf.Add(testSnapshot("Folia", time.Now()))
			}
		}()
	}
	close(start)
	buf.Stop()
	wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.n > goroutines*perGoroutine {
		t.Errorf("written = %d, want at most %d", w.n, goroutines*perGoroutine)
	}
}

func TestInsertBuffer_AssignsID(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)
	snap := testSnapshot("Paper", time.Now())
	buf.Add(snap)
	buf.Stop()
	if snap.ID == "" {
		t.Error("Add did not assign an id")
	}
}

func TestInsertBuffer_CommitsJournal(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ingest.journal")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	buf := NewInsertBuffer(store, InsertBufferConfig{Journal: j})
	for i := 0; i < 3; i++ {
		buf.Add(testSnapshot("Paper", time.Now()))
	}
	buf.Stop() // closes the journal

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	pending := 0
	if err := reopened.Replay(func(uint64, *model.Snapshot) error { pending++; return nil }); err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Errorf("%d journal entries left uncommitted", pending)
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) InsertSnapshotBatch([]*model.Snapshot) error {
	w.calls++
	return errors.New("disk full")
}

func TestInsertBuffer_WriterErrorLeavesJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	w := &failingWriter{}
	buf := NewInsertBuffer(w, InsertBufferConfig{Journal: j})
	buf.Add(testSnapshot("Paper", time.Now()))
	buf.Stop()

	if w.calls == 0 {
		t.Fatal("writer never called")
	}

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	pending := 0
	_ = reopened.Replay(func(uint64, *model.Snapshot) error { pending++; return nil })
	if pending != 1 {
		t.Errorf("pending = %d, want 1 for replay after restart", pending)
	}
}
