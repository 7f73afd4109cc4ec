package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
)

// TransportError wraps socket-level failures: dial, write, read, framing.
// A mid-session occurrence means the connection is no longer usable and the
// session must be torn down and re-established.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ipc %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CommandError reports a command the window manager received but rejected.
// These are never retried; the next focus event re-evaluates anyway.
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("command %q rejected", e.Command)
	}
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reason)
}

var errNotConnected = errors.New("not connected")

// Client is the request/response half of an IPC session: tree queries and
// layout commands. Requests are serialized; the engine processes one event
// at a time anyway.
type Client struct {
	path string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a client for the socket at path. No connection is made
// until Connect.
func NewClient(path string) *Client {
	return &Client{path: path}
}

// Connect dials the window manager's socket, replacing any previous
// connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	c.conn = conn
	return nil
}

// Close shuts the connection down. Safe to call when not connected; a
// pending read or write fails over to a transport error.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// GetTree fetches a fresh layout tree snapshot.
func (c *Client) GetTree(ctx context.Context) (*state.Node, error) {
	payload, err := c.roundTrip(ctx, msgGetTree, nil)
	if err != nil {
		return nil, err
	}
	var root state.Node
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &root, nil
}

type commandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RunCommand issues a single command string and decodes the reply, surfacing
// the first rejected entry as a *CommandError.
func (c *Client) RunCommand(ctx context.Context, command string) error {
	payload, err := c.roundTrip(ctx, msgRunCommand, []byte(command))
	if err != nil {
		return err
	}
	var results []commandResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return fmt.Errorf("decode command reply: %w", err)
	}
	for _, res := range results {
		if !res.Success {
			return &CommandError{Command: command, Reason: res.Error}
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	if conn == nil {
		return nil, &TransportError{Op: "request", Err: errNotConnected}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	// Cancellation closes the socket so a pending read cannot outlive the
	// caller.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if err := writeMessage(conn, msgType, payload); err != nil {
		return nil, &TransportError{Op: "write", Err: err}
	}
	for {
		replyType, replyPayload, err := readMessage(conn)
		if err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		if replyType&eventFlag != 0 {
			// This client never subscribes, but skipping event frames
			// keeps the reply stream aligned if one ever shows up.
			continue
		}
		if replyType != msgType {
			return nil, &TransportError{Op: "read", Err: fmt.Errorf("reply type %d for request type %d", replyType, msgType)}
		}
		return replyPayload, nil
	}
}

var _ state.TreeSource = (*Client)(nil)
