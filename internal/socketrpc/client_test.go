package socketrpc_test

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

type mockStats struct{ latest time.Time }

func (m mockStats) TotalSnapshotCount(context.Context) (int64, error) { return 42, nil }
func (m mockStats) LatestSnapshotTime(context.Context) (time.Time, error) {
	return m.latest, nil
}

type mockReports struct{}

func (mockReports) Names() []string { return []string{"players-servers", "server-locations"} }
func (mockReports) Distribution(_ context.Context, name string) (aggregate.GroupedStat, error) {
	return aggregate.GroupedStat{{Key: "Germany", Value: 5}, {Key: "Japan", Value: 2}}, nil
}
func (mockReports) Render(_ context.Context, name string) ([]byte, error) {
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg"><text>` + name + `</text></svg>`), nil
}

func startTestServer(t *testing.T, latest time.Time) (string, *socketrpc.Server) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := socketrpc.NewServer(sockPath, mockStats{latest: latest}, mockReports{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return sockPath, srv
}

func TestRoundtrip(t *testing.T) {
	latest := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sockPath, srv := startTestServer(t, latest)
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	t.Run("SnapshotCount", func(t *testing.T) {
		n, err := client.SnapshotCount()
		if err != nil || n != 42 {
			t.Fatalf("SnapshotCount = %d, %v", n, err)
		}
	})

	t.Run("LatestSnapshot", func(t *testing.T) {
		got, err := client.LatestSnapshot()
		if err != nil || !got.Equal(latest) {
			t.Fatalf("LatestSnapshot = %v, %v", got, err)
		}
	})

	t.Run("ListReports", func(t *testing.T) {
		names, err := client.ListReports()
		if err != nil || strings.Join(names, ",") != "players-servers,server-locations" {
			t.Fatalf("ListReports = %v, %v", names, err)
		}
	})

	t.Run("Distribution", func(t *testing.T) {
		stat, err := client.Distribution("server-locations")
		if err != nil {
			t.Fatal(err)
		}
		if len(stat) != 2 || stat[0].Key != "Germany" || stat[0].Value != 5 {
			t.Fatalf("Distribution = %v", stat)
		}
	})

	t.Run("RenderReport", func(t *testing.T) {
		doc, err := client.RenderReport("server-locations")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(doc, "<svg") || !strings.Contains(doc, "<text>server-locations</text>") {
			t.Fatalf("RenderReport = %q", doc)
		}
	})
}

func TestMethodNotFound(t *testing.T) {
	sockPath, srv := startTestServer(t, time.Time{})
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	err = client.Call("TopWords", nil, nil)
	if !socketrpc.IsCode(err, socketrpc.CodeMethodNotFound) {
		t.Fatalf("err = %v, want method not found", err)
	}
	// the connection survives an error response
	if _, err := client.SnapshotCount(); err != nil {
		t.Fatalf("SnapshotCount after error: %v", err)
	}
}

func TestParseError(t *testing.T) {
	sockPath, srv := startTestServer(t, time.Time{})
	defer srv.Stop()

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(buf[:n]), "-32700") {
		t.Errorf("response = %s", buf[:n])
	}
}

func TestDialFailure(t *testing.T) {
	if _, err := socketrpc.Dial(filepath.Join(t.TempDir(), "nonexistent.sock")); err == nil {
		t.Fatal("expected error dialing nonexistent socket")
	}
}

func TestSecondServerRefused(t *testing.T) {
	sockPath, srv := startTestServer(t, time.Time{})
	defer srv.Stop()

	other := socketrpc.NewServer(sockPath, mockStats{}, mockReports{})
	if err := other.Start(); err == nil {
		other.Stop()
		t.Fatal("second server started on a live socket")
	}
}

func TestServerStopCleansSocket(t *testing.T) {
	sockPath, srv := startTestServer(t, time.Time{})
	srv.Stop()

	if _, err := socketrpc.Dial(sockPath); err == nil {
		t.Fatal("expected dial to fail after server stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	_, srv := startTestServer(t, time.Time{})
	srv.Stop()
	srv.Stop()
}

func TestStopClosesConns(t *testing.T) {
	sockPath, srv := startTestServer(t, time.Time{})
	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// make sure the server has accepted the connection
	if _, err := client.SnapshotCount(); err != nil {
		t.Fatal(err)
	}
	srv.Stop()

	done := make(chan error, 1)
	go func() {
		_, callErr := client.ListReports()
		done <- callErr
	}()

	select {
	case callErr := <-done:
		if callErr == nil {
			t.Fatal("expected client call to fail after server stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client call hung after server stop")
	}
}
