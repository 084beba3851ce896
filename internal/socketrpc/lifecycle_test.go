package socketrpc

import (
	"path/filepath"
	"testing"
	"time"
)

func waitResult(t *testing.T, s *Server) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
		return nil
	}
}

func TestWait_NilAfterStop(t *testing.T) {
	s := NewServer(filepath.Join(t.TempDir(), "pulse.sock"), stubBackend{}, stubBackend{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if err := waitResult(t, s); err != nil {
		t.Fatalf("Wait after Stop = %v, want nil", err)
	}
}

func TestWait_ReportsDeadListener(t *testing.T) {
	s := NewServer(filepath.Join(t.TempDir(), "pulse.sock"), stubBackend{}, stubBackend{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	_ = s.listener.Close()
	if err := waitResult(t, s); err == nil {
		t.Fatal("Wait = nil after the listener closed underneath the server")
	}
}
