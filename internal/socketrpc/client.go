package socketrpc

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tinytelemetry/pulse/internal/aggregate"
)

// Client calls a pulse server over its Unix socket. It is safe for
// concurrent use; calls are serialised on one connection.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call performs one request and unmarshals the result into dest.
// Server-side failures come back as *RPCError.
func (c *Client) Call(method string, params any, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	_ = c.conn.SetDeadline(time.Now().Add(callTimeout + 5*time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsData}); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id && resp.Error == nil {
		return fmt.Errorf("socketrpc: response id %d for request %d", resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) SnapshotCount() (int64, error) {
	var n int64
	err := c.Call(MethodSnapshotCount, nil, &n)
	return n, err
}

// LatestSnapshot returns the newest snapshot time, zero when the store is empty.
func (c *Client) LatestSnapshot() (time.Time, error) {
	var t time.Time
	err := c.Call(MethodLatestSnapshot, nil, &t)
	return t, err
}

func (c *Client) ListReports() ([]string, error) {
	var names []string
	err := c.Call(MethodListReports, nil, &names)
	return names, err
}

func (c *Client) Distribution(name string) (aggregate.GroupedStat, error) {
	var stat aggregate.GroupedStat
	err := c.Call(MethodDistribution, NameParams{Name: name}, &stat)
	return stat, err
}

// RenderReport returns the named chart as an SVG document.
func (c *Client) RenderReport(name string) (string, error) {
	var doc string
	err := c.Call(MethodRenderReport, NameParams{Name: name}, &doc)
	return doc, err
}
