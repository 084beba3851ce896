package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/pulse/internal/draw/svg"
	"github.com/tinytelemetry/pulse/internal/duckdb"
	"github.com/tinytelemetry/pulse/internal/hourcache"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/report"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIngester struct {
	err  error
	reqs []ingest.Request
}

func (f *fakeIngester) Accept(_ context.Context, req ingest.Request) error {
	f.reqs = append(f.reqs, req)
	return f.err
}

type countingRenderer struct {
	calls int
	err   error
}

func (r *countingRenderer) Render(_ context.Context, name string) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("<svg>" + name + "</svg>"), nil
}

func newTestServer(t *testing.T) (*Server, *duckdb.Store, http.Handler) {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer("", store, report.NewService(store, svg.Encoder{}), &fakeIngester{}, hourcache.New(16))
	return srv, store, srv.AdminHandler()
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, store, h := newTestServer(t)
	if err := store.InsertSnapshotBatch([]*model.Snapshot{{ServerCore: "Paper", CreatedAt: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	w := do(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
	if body["snapshot_count"] != float64(1) {
		t.Errorf("snapshot_count = %v, want 1", body["snapshot_count"])
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, _, h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	_, store, h := newTestServer(t)
	if err := store.InsertSnapshotBatch([]*model.Snapshot{{ServerCore: "Paper", CreatedAt: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"select", `{"sql": "SELECT COUNT(*) AS cnt, MAX(server_core) AS core FROM snapshots"}`, http.StatusOK},
		{"with", `{"sql": "WITH c AS (SELECT COUNT(*) AS cnt FROM snapshots) SELECT cnt FROM c"}`, http.StatusOK},
		{"write", `{"sql": "DELETE FROM snapshots"}`, http.StatusBadRequest},
		{"file read", `{"sql": "SELECT content FROM read_text('/etc/hostname')"}`, http.StatusBadRequest},
		{"missing sql", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/query", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := do(t, h, http.MethodPost, "/api/query", tests[0].body)
	var body struct {
		Columns  []string `json:"columns"`
		RowCount int      `json:"row_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if strings.Join(body.Columns, ",") != "cnt,core" || body.RowCount != 1 {
		t.Errorf("query response = %+v", body)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	_, _, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/api/schema", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d; body: %s", w.Code, w.Body.String())
	}

	var body struct {
		Description string                         `json:"description"`
		Tables      map[string][]map[string]string `json:"tables"`
		RowCounts   map[string]int64               `json:"row_counts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body.Description, "snapshots") {
		t.Errorf("description = %q", body.Description)
	}
	if len(body.Tables["snapshots"]) != 18 {
		t.Errorf("snapshots columns = %d, want 18", len(body.Tables["snapshots"]))
	}
	if _, ok := body.RowCounts["snapshots"]; !ok {
		t.Errorf("row_counts = %v", body.RowCounts)
	}
}

func TestIngestEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantBody string
	}{
		{"saved", nil, http.StatusOK, "Saved"},
		{"throttled", ingest.ErrThrottled, http.StatusTooManyRequests, ""},
		{"invalid", &ingest.ValidationError{Reason: "malformed JSON"}, http.StatusBadRequest, "malformed JSON"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &fakeIngester{err: tt.err}
			srv := NewServer("", nil, &countingRenderer{}, ing, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/pulse/metrics", strings.NewReader(`{"serverCore":"Paper"}`))
			req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			req.Header.Set("Content-Encoding", "gzip")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if len(ing.reqs) != 1 {
				t.Fatalf("ingester called %d times", len(ing.reqs))
			}
			got := ing.reqs[0]
			if got.ClientIP != "203.0.113.7" || got.ContentEncoding != "gzip" || string(got.Body) != `{"serverCore":"Paper"}` || got.ReceivedAt.IsZero() {
				t.Errorf("request = %+v", got)
			}
		})
	}
}

func TestChartEndpoints(t *testing.T) {
	srv, store, _ := newTestServer(t)
	h := srv.Handler()
	now := time.Now().UTC()
	if err := store.InsertSnapshotBatch([]*model.Snapshot{
		{ServerCore: "Paper", ServerVersion: "1.20.4", PlayerCount: 5, Location: "Germany", CreatedAt: now.Add(-time.Minute)},
		{ServerCore: "Folia", ServerVersion: "1.21", PlayerCount: 2, Location: "Japan", CreatedAt: now.Add(-2 * time.Minute)},
	}); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/api/pulse/metrics/svg", "/api/pulse/metrics/svg/server-versions", "/api/pulse/metrics/svg/server-locations", "/api/pulse/metrics/svg/modules-status"} {
		w := do(t, h, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d; body: %s", path, w.Code, w.Body.String())
			continue
		}
		if ct := w.Header().Get("Content-Type"); ct != svgContentType {
			t.Errorf("%s content type = %q", path, ct)
		}
		if cc := w.Header().Get("Cache-Control"); !strings.HasPrefix(cc, "public, max-age=") {
			t.Errorf("%s cache control = %q", path, cc)
		}
		if !strings.HasPrefix(w.Body.String(), "<svg") {
			t.Errorf("%s body does not start with <svg: %.40s", path, w.Body.String())
		}
	}

	if w := do(t, h, http.MethodGet, "/api/pulse/metrics/svg/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown chart status = %d, want 404", w.Code)
	}
}

func TestChartEndpoint_CachedPerHour(t *testing.T) {
	r := &countingRenderer{}
	srv := NewServer("", nil, r, nil, hourcache.New(4))
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		if w := do(t, h, http.MethodGet, "/api/pulse/metrics/svg/ram-usage", ""); w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	if r.calls != 1 {
		t.Errorf("renderer called %d times, want 1", r.calls)
	}

	do(t, h, http.MethodGet, "/api/pulse/metrics/svg/nope", "")
	if r.calls != 1 {
		t.Errorf("unknown chart reached the renderer")
	}
}

func TestChartEndpoint_RenderError(t *testing.T) {
	r := &countingRenderer{err: errors.New("store down")}
	srv := NewServer("", nil, r, nil, hourcache.New(4))
	h := srv.Handler()

	if w := do(t, h, http.MethodGet, "/api/pulse/metrics/svg", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	// errors are not cached
	do(t, h, http.MethodGet, "/api/pulse/metrics/svg", "")
	if r.calls != 2 {
		t.Errorf("renderer called %d times, want 2", r.calls)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer("", nil, &countingRenderer{}, nil, nil)
	w := do(t, srv.AdminHandler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestSecondsToNextHour(t *testing.T) {
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), 3600},
		{time.Date(2025, 3, 10, 12, 59, 30, 0, time.UTC), 30},
		{time.Date(2025, 3, 10, 13, 15, 0, 0, time.FixedZone("IST", 5*3600+1800)), 900},
	}
	for _, tt := range tests {
		if got := secondsToNextHour(tt.now); got != tt.want {
			t.Errorf("secondsToNextHour(%v) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestPublicHandler_NoAdminRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	for _, r := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/query", `{"sql": "SELECT 1"}`},
		{http.MethodGet, "/api/schema", ""},
		{http.MethodGet, "/metrics", ""},
	} {
		if w := do(t, h, r.method, r.path, r.body); w.Code != http.StatusNotFound {
			t.Errorf("public %s %s status = %d, want 404", r.method, r.path, w.Code)
		}
	}
	if w := do(t, h, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("public health status = %d", w.Code)
	}
}

func TestCheckLoopback(t *testing.T) {
	tests := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:8081", true},
		{"[::1]:8081", true},
		{"localhost:8081", true},
		{"0.0.0.0:8081", false},
		{":8081", false},
		{"10.0.0.5:8081", false},
		{"no-port", false},
	}
	for _, tt := range tests {
		err := CheckLoopback(tt.addr)
		if (err == nil) != tt.ok {
			t.Errorf("CheckLoopback(%q) = %v, want ok=%v", tt.addr, err, tt.ok)
		}
	}
}

func TestStart_RejectsPublicAdminAddr(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, &countingRenderer{}, nil, nil)
	srv.AdminAddr = "0.0.0.0:0"
	if err := srv.Start(); !errors.Is(err, ErrAdminNotLoopback) {
		srv.Stop()
		t.Fatalf("Start err = %v, want ErrAdminNotLoopback", err)
	}
}

func TestStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, &countingRenderer{}, nil, nil)
	srv.AdminAddr = "127.0.0.1:0"
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- srv.Wait() }()

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("Wait after Stop = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Stop")
	}
}
