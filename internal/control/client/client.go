package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/control"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running autotiling daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// StatusInfo describes the daemon's connection state and effective policy.
	StatusInfo = control.StatusInfo
	// Decision mirrors one entry of the daemon's decision history.
	Decision = control.Decision
	// MetricsInfo mirrors the daemon's counter snapshot.
	MetricsInfo = control.MetricsInfo
	// SplitTotals counts split commands by orientation.
	SplitTotals = control.SplitTotals
)

// New creates a client that connects to the provided socket path. When path
// is empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the daemon's connection state and effective policy.
func (c *Client) Status(ctx context.Context) (StatusInfo, error) {
	var status StatusInfo
	if err := c.do(ctx, control.Request{Action: control.ActionStatus}, &status); err != nil {
		return StatusInfo{}, err
	}
	return status, nil
}

// History retrieves up to limit recent decisions, oldest first. A
// non-positive limit returns everything the daemon retains.
func (c *Client) History(ctx context.Context, limit int) ([]Decision, error) {
	req := control.Request{Action: control.ActionHistory}
	if limit > 0 {
		req.Params = map[string]any{"limit": limit}
	}
	var result control.HistoryResult
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return result.Decisions, nil
}

// Metrics retrieves the daemon's counter snapshot.
func (c *Client) Metrics(ctx context.Context) (MetricsInfo, error) {
	var info MetricsInfo
	if err := c.do(ctx, control.Request{Action: control.ActionMetrics}, &info); err != nil {
		return MetricsInfo{}, err
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
