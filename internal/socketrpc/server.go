package socketrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	scannerInitBufSize  = 64 * 1024
	scannerMaxTokenSize = 1024 * 1024

	// callTimeout bounds one store or render call.
	callTimeout = 30 * time.Second
)

// Reports is the report-catalog side of the protocol.
type Reports interface {
	Names() []string
	Distribution(ctx context.Context, name string) (aggregate.GroupedStat, error)
	Render(ctx context.Context, name string) ([]byte, error)
}

// Server exposes snapshot stats and the report catalog over a Unix socket.
type Server struct {
	socketPath string
	stats      model.StatsQuerier
	reports    Reports
	log        zerolog.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	accepting chan struct{}
	acceptErr error

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server.
func NewServer(socketPath string, stats model.StatsQuerier, reports Reports) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		stats:      stats,
		reports:    reports,
		log:        logging.Component("socketrpc"),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]struct{}),
		accepting:  make(chan struct{}),
	}
}

// Start listens on the socket and accepts connections in the background.
// A leftover socket file nobody answers on is replaced.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr == nil {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
		_ = os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptErr = s.acceptLoop()
		close(s.accepting)
	}()

	s.log.Info().Str("path", s.socketPath).Msg("listening")
	return nil
}

// Stop closes the listener and open connections, waits for handlers to
// return, and removes the socket file. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	})
}

// Wait blocks until the accept loop of a started server exits. It returns nil after Stop and
// an error when the listener died underneath a running server.
func (s *Server) Wait() error {
	<-s.accepting
	return s.acceptErr
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.log.Error().Err(err).Msg("listener closed")
				return fmt.Errorf("socketrpc: accept: %w", err)
			}
			s.log.Warn().Err(err).Msg("accept failed")
			// transient (e.g. fd limit)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// track registers conn unless the server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		if s.ctx.Err() != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = encoder.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error"}})
			continue
		}

		if err := encoder.Encode(s.dispatch(req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	ctx, cancel := context.WithTimeout(s.ctx, callTimeout)
	defer cancel()

	result := func(v any, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: CodeAppError, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	named := func() (string, *Response) {
		var p NameParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
			return "", &resp
		}
		if p.Name == "" {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: "invalid params: Name is required"}
			return "", &resp
		}
		return p.Name, nil
	}

	switch req.Method {
	case MethodSnapshotCount:
		return result(s.stats.TotalSnapshotCount(ctx))

	case MethodLatestSnapshot:
		return result(s.stats.LatestSnapshotTime(ctx))

	case MethodListReports:
		return result(s.reports.Names(), nil)

	case MethodDistribution:
		name, bad := named()
		if bad != nil {
			return *bad
		}
		return result(s.reports.Distribution(ctx, name))

	case MethodRenderReport:
		name, bad := named()
		if bad != nil {
			return *bad
		}
		out, err := s.reports.Render(ctx, name)
		return result(string(out), err)

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

// IsCode reports whether err is an RPC error with the given code.
func IsCode(err error, code int) bool {
	var rerr *RPCError
	return errors.As(err, &rerr) && rerr.Code == code
}
