package control

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// Action names supported by the control protocol.
	ActionStatus  = "status"
	ActionHistory = "history"
	ActionMetrics = "metrics"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// SplitTotals counts split commands by orientation.
type SplitTotals struct {
	Vertical   uint64 `json:"vertical"`
	Horizontal uint64 `json:"horizontal"`
}

// Decision mirrors one entry of the daemon's decision history.
type Decision struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	WindowID  int64     `json:"windowId"`
	Workspace string    `json:"workspace"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Command   string    `json:"command"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// StatusInfo describes the daemon's connection state and effective policy.
type StatusInfo struct {
	Connected    bool        `json:"connected"`
	ConnectedAt  time.Time   `json:"connectedAt,omitempty"`
	StartedAt    time.Time   `json:"startedAt"`
	Ratio        float64     `json:"ratio"`
	Workspaces   []string    `json:"workspaces,omitempty"`
	SkipLayouts  []string    `json:"skipLayouts,omitempty"`
	DryRun       bool        `json:"dryRun"`
	Applied      SplitTotals `json:"applied"`
	Simulated    SplitTotals `json:"simulated"`
	LastDecision *Decision   `json:"lastDecision,omitempty"`
}

// HistoryResult carries recent decisions, oldest first.
type HistoryResult struct {
	Decisions []Decision `json:"decisions"`
}

// SkipCount is one skip reason with its tally.
type SkipCount struct {
	Reason string `json:"reason"`
	Count  uint64 `json:"count"`
}

// MetricsInfo mirrors the daemon's counter snapshot.
type MetricsInfo struct {
	Started       time.Time   `json:"started"`
	FocusEvents   uint64      `json:"focusEvents"`
	Applied       SplitTotals `json:"applied"`
	DryRun        SplitTotals `json:"dryRun"`
	Skips         []SkipCount `json:"skips,omitempty"`
	CommandErrors uint64      `json:"commandErrors"`
	Reconnects    uint64      `json:"reconnects"`
	Disconnects   uint64      `json:"disconnects"`
	LastDecision  time.Time   `json:"lastDecision,omitempty"`
}

// DefaultSocketPath returns the expected location of the control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("AUTOTILING_CONTROL_SOCKET"); env != "" {
		return env, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	base := runtimeDir
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "autotiling", SocketFileName), nil
}
