package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

func snapshot(core string) *model.Snapshot {
	return &model.Snapshot{
		ServerCore:  core,
		PlayerCount: 3,
		Modules:     map[string]string{"core": "enabled"},
		CreatedAt:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func replayCores(t *testing.T, j *Journal) []string {
	t.Helper()
	var cores []string
	err := j.Replay(func(_ uint64, s *model.Snapshot) error {
		cores = append(cores, s.ServerCore)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return cores
}

func TestAppendReplayCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	seq1, err := j.Append(snapshot("Paper"))
	if err != nil {
		t.Fatalf("Append first: %v", err)
	}
	seq2, err := j.Append(snapshot("Folia"))
	if err != nil {
		t.Fatalf("Append second: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence did not advance: seq1=%d seq2=%d", seq1, seq2)
	}

	if err := j.Commit(seq1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := replayCores(t, j); len(got) != 1 || got[0] != "Folia" {
		t.Fatalf("Replay = %v, want [Folia]", got)
	}

	// commits never move backwards
	if err := j.Commit(0); err != nil {
		t.Fatal(err)
	}
	if j.Committed() != seq1 {
		t.Errorf("Committed = %d, want %d", j.Committed(), seq1)
	}
}

func TestReplayPreservesSnapshot(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "ingest.journal"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	in := snapshot("Purpur")
	in.TotalRAM = 8 << 30
	if _, err := j.Append(in); err != nil {
		t.Fatal(err)
	}
	in.Modules["core"] = "mutated after append"

	var got *model.Snapshot
	_ = j.Replay(func(_ uint64, s *model.Snapshot) error {
		got = s
		return nil
	})
	if got == nil || got.TotalRAM != 8<<30 || got.Modules["core"] != "enabled" || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("replayed %+v", got)
	}
}

func TestOpenCompactsCommitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var last uint64
	for _, core := range []string{"a", "b", "c"} {
		if last, err = j.Append(snapshot(core)); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.Commit(last - 1); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Errorf("compacted journal has %d lines, want 1", n)
	}
	if got := replayCores(t, j2); len(got) != 1 || got[0] != "c" {
		t.Errorf("Replay after reopen = %v, want [c]", got)
	}

	next, err := j2.Append(snapshot("d"))
	if err != nil {
		t.Fatal(err)
	}
	if next != last+1 {
		t.Errorf("sequence after reopen = %d, want %d", next, last+1)
	}
}

func TestOpenIgnoresPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Append(snapshot("ok")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// torn write
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"seq":999,"record":`); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	_ = f.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer j2.Close()

	if got := replayCores(t, j2); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("Replay after torn write = %v, want [ok]", got)
	}
}

func TestAppendAfterClose(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "ingest.journal"))
	if err != nil {
		t.Fatal(err)
	}
	_ = j.Close()
	if _, err := j.Append(snapshot("x")); err == nil {
		t.Error("Append after Close succeeded")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("Open with empty path succeeded")
	}
}
