// Package socketrpc serves admin reads over a Unix domain socket using
// JSON-RPC 2.0, one JSON object per line.
package socketrpc

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Method reference
//
//   Method           Params          Result
//   ──────────────   ─────────────   ─────────────────────────────
//   SnapshotCount    (none)          int64
//   LatestSnapshot   (none)          time.Time (zero when empty)
//   ListReports      (none)          []string, catalog order
//   Distribution     {Name: string}  aggregate.GroupedStat
//   RenderReport     {Name: string}  string (SVG document)
//
// Error codes:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (query or render failure)

// Method names.
const (
	MethodSnapshotCount  = "SnapshotCount"
	MethodLatestSnapshot = "LatestSnapshot"
	MethodListReports    = "ListReports"
	MethodDistribution   = "Distribution"
	MethodRenderReport   = "RenderReport"
)

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// NameParams names one catalog report.
type NameParams struct {
	Name string
}

// DefaultSocketPath prefers $XDG_RUNTIME_DIR/pulse/pulse.sock, falling back
// to ~/.local/state/pulse/pulse.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pulse", "pulse.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pulse.sock")
	}
	return filepath.Join(home, ".local", "state", "pulse", "pulse.sock")
}
