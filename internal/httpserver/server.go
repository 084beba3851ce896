// Package httpserver serves two listeners. The public one takes snapshot
// reports and serves charts and health. The admin one carries the read-only
// SQL API, schema and prometheus metrics, and only binds loopback addresses.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/pulse/internal/hourcache"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// DefaultAddr is used when NewServer is given an empty address.
	DefaultAddr = "0.0.0.0:8080"
	// DefaultAdminAddr is the admin listener NewServer starts with.
	DefaultAdminAddr = "127.0.0.1:8081"
)

// ErrAdminNotLoopback is returned by Start when the admin address would be
// reachable from other hosts.
var ErrAdminNotLoopback = errors.New("httpserver: admin address must be loopback")

// Renderer produces an encoded chart by catalog name.
type Renderer interface {
	Render(ctx context.Context, name string) ([]byte, error)
}

// Ingester accepts one raw snapshot report.
type Ingester interface {
	Accept(ctx context.Context, req ingest.Request) error
}

// Server serves the pulse HTTP API.
type Server struct {
	// AdminAddr is the loopback address for the admin routes. Empty
	// disables them.
	AdminAddr string

	addr      string
	store     model.ReadAPI
	reports   Renderer
	ingester  Ingester
	cache     *hourcache.Cache
	servers   []*http.Server
	serving   errgroup.Group
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	now       func() time.Time
}

// NewServer creates a new HTTP API server. A nil cache renders every request.
func NewServer(addr string, store model.ReadAPI, reports Renderer, ingester Ingester, cache *hourcache.Cache) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		AdminAddr: DefaultAdminAddr,
		addr:      addr,
		store:     store,
		reports:   reports,
		ingester:  ingester,
		cache:     cache,
		log:       logging.Component("http"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Handler builds the public engine: ingest, charts and health.
func (s *Server) Handler() http.Handler {
	r := s.engine()

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	pulse := api.Group("/pulse/metrics")
	pulse.POST("", s.handleIngest)
	pulse.GET("/svg", s.handleMainChart)
	pulse.GET("/svg/:name", s.handleChart)
	return r
}

// AdminHandler builds the admin engine: read-only SQL, schema, health and
// prometheus metrics.
func (s *Server) AdminHandler() http.Handler {
	r := s.engine()

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/schema", s.handleSchema)
	api.POST("/query", s.handleQuery)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	return r
}

// Start binds both listeners and serves them in the background. Wait
// reports a listener that stops serving on its own.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	if s.AdminAddr != "" {
		if err := CheckLoopback(s.AdminAddr); err != nil {
			return err
		}
	}

	publicLn, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.startTime = time.Now()
	s.serve("public", publicLn, s.Handler())

	if s.AdminAddr != "" {
		adminLn, err := net.Listen("tcp", s.AdminAddr)
		if err != nil {
			_ = s.Stop()
			return fmt.Errorf("admin listener: %w", err)
		}
		s.serve("admin", adminLn, s.AdminHandler())
	}
	return nil
}

func (s *Server) serve(name string, ln net.Listener, h http.Handler) {
	srv := &http.Server{
		Handler:           h,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	s.servers = append(s.servers, srv)

	s.serving.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Str("listener", name).Msg("serve failed")
			return fmt.Errorf("%s listener: %w", name, err)
		}
		return nil
	})
	s.log.Info().Str("listener", name).Str("addr", ln.Addr().String()).Msg("listening")
}

// Wait blocks until every listener has stopped and returns the first serve
// failure. After a clean Stop it returns nil.
func (s *Server) Wait() error {
	return s.serving.Wait()
}

// Stop gracefully shuts down both listeners.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckLoopback returns ErrAdminNotLoopback unless addr's host is a
// loopback IP or "localhost".
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("httpserver: admin address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrAdminNotLoopback, addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.TotalSnapshotCount(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         time.Since(s.startTime).String(),
		"snapshot_count": count,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	description := s.store.GetSchemaDescription()

	tables, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		table := fmt.Sprintf("%v", row["table_name"])
		schema[table] = append(schema[table], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.store.TableRowCounts()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": description,
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	columns := []string{}
	if len(results) > 0 {
		columns = slices.Sorted(maps.Keys(results[0]))
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
