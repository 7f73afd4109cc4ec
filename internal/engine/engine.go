package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/config"
	"github.com/Ruixi-rebirth/async-autotiling/internal/ipc"
	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
	"github.com/Ruixi-rebirth/async-autotiling/internal/metrics"
	"github.com/Ruixi-rebirth/async-autotiling/internal/rules"
	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

// Conn is the command-path connection the engine drives. Connect may be
// called repeatedly; each call replaces any previous session.
type Conn interface {
	Connect(ctx context.Context) error
	GetTree(ctx context.Context) (*state.Node, error)
	RunCommand(ctx context.Context, command string) error
	Close() error
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// Reconnect backoff doubles from the base up to the cap. The attempt
// counter resets once a session is established.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 5 * time.Second
)

const (
	skipReasonNoFocus   = "no-focus"
	skipReasonWorkspace = "workspace"
	skipReasonRedundant = "redundant"
	skipReasonBadTree   = "tree-error"
)

var errStreamClosed = errors.New("event stream closed")

// Engine owns the daemon loop: it keeps the IPC session alive, reacts to
// window focus events, and sets the split orientation of the focused
// container to match its geometry.
type Engine struct {
	cfg     config.Config
	conn    Conn
	logger  *util.Logger
	metrics *metrics.Collector
	history *decisionLog

	mu          sync.Mutex
	connected   bool
	connectedAt time.Time
	startedAt   time.Time

	subscribe subscribeFunc
	retryWait func(attempt int) time.Duration
}

// Status is the engine's introspection snapshot served over the control
// socket.
type Status struct {
	Connected    bool                `json:"connected"`
	ConnectedAt  time.Time           `json:"connectedAt,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	Ratio        float64             `json:"ratio"`
	Workspaces   []string            `json:"workspaces,omitempty"`
	SkipLayouts  []layout.Kind       `json:"skipLayouts,omitempty"`
	DryRun       bool                `json:"dryRun"`
	Applied      metrics.SplitTotals `json:"applied"`
	Simulated    metrics.SplitTotals `json:"simulated"`
	LastDecision *DecisionRecord     `json:"lastDecision,omitempty"`
}

// New creates an engine around the provided command connection. The
// configuration must already be validated and its socket path resolved.
func New(cfg config.Config, conn Conn, logger *util.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		metrics:   metrics.NewCollector(),
		history:   newDecisionLog(0),
		startedAt: time.Now(),
	}
	e.subscribe = func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error) {
		return ipc.Subscribe(ctx, cfg.Socket, logger)
	}
	e.retryWait = defaultRetryWait
	return e
}

func defaultRetryWait(attempt int) time.Duration {
	wait := backoffBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= backoffCap {
			return backoffCap
		}
	}
	return wait
}

// Run drives continuous mode until ctx is cancelled. Transport failures
// never end the loop; they tear the session down and the supervisor
// reconnects with backoff.
func (e *Engine) Run(ctx context.Context) error {
	attempt := 0
	sessions := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sessionCtx, cancel := context.WithCancel(ctx)
		events, err := e.openSession(sessionCtx)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			wait := e.retryWait(attempt)
			e.logger.Warnf("connect failed: %v (retrying in %s)", err, wait)
			if !sleepContext(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		attempt = 0
		sessions++
		if sessions == 1 {
			e.logger.Infof("listening for window focus events (ratio %.2f)", e.cfg.Ratio)
		} else {
			e.metrics.RecordReconnect()
			e.logger.Infof("reconnected to window manager")
		}
		e.setConnected(true)
		err = e.watch(sessionCtx, events)
		cancel()
		e.conn.Close()
		e.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metrics.RecordDisconnect()
		e.logger.Warnf("session ended: %v (reconnecting)", err)
	}
}

// RunOnce performs a single evaluation pass: connect, evaluate the
// currently focused window, close. Connection and transport failures are
// returned; a tree without a focused window is a clean no-op.
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.conn.Connect(ctx); err != nil {
		return err
	}
	defer e.conn.Close()
	return e.process(ctx)
}

// ApplyEvent runs one evaluation pass for the given event against the
// current connection. Events other than focus changes are ignored.
func (e *Engine) ApplyEvent(ctx context.Context, ev ipc.Event) error {
	if ev.Change != ipc.WindowChangeFocus {
		return nil
	}
	return e.process(ctx)
}

// Status reports the engine's current view of itself.
func (e *Engine) Status() Status {
	e.mu.Lock()
	connected, connectedAt, startedAt := e.connected, e.connectedAt, e.startedAt
	e.mu.Unlock()
	snap := e.metrics.Snapshot()
	st := Status{
		Connected: connected,
		StartedAt: startedAt,
		Ratio:     e.cfg.Ratio,
		DryRun:    e.cfg.DryRun,
		Applied:   snap.Applied,
		Simulated: snap.DryRun,
	}
	if connected {
		st.ConnectedAt = connectedAt
	}
	if len(e.cfg.Workspaces) > 0 {
		st.Workspaces = append([]string(nil), e.cfg.Workspaces...)
	}
	if len(e.cfg.SkipLayouts) > 0 {
		st.SkipLayouts = append([]layout.Kind(nil), e.cfg.SkipLayouts...)
	}
	if last, ok := e.history.last(); ok {
		st.LastDecision = &last
	}
	return st
}

// History returns up to limit recent decision records, oldest first. A
// non-positive limit returns everything retained.
func (e *Engine) History(limit int) []DecisionRecord {
	return e.history.snapshot(limit)
}

// Metrics returns the engine's counter snapshot.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) openSession(ctx context.Context) (<-chan ipc.Event, error) {
	if err := e.conn.Connect(ctx); err != nil {
		return nil, err
	}
	events, err := e.subscribe(ctx, e.logger)
	if err != nil {
		e.conn.Close()
		return nil, err
	}
	return events, nil
}

func (e *Engine) watch(ctx context.Context, events <-chan ipc.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errStreamClosed
			}
			if ev.Change != ipc.WindowChangeFocus {
				e.logger.Tracef("ignoring window event %q", ev.Change)
				continue
			}
			if err := e.process(ctx); err != nil {
				var transportErr *ipc.TransportError
				if errors.As(err, &transportErr) {
					return err
				}
				e.logger.Errorf("focus event pass failed: %v", err)
			}
		}
	}
}

// process runs one evaluation pass against a fresh tree snapshot. It
// returns an error only when the session is no longer usable; everything
// else degrades to a logged skip.
func (e *Engine) process(ctx context.Context) error {
	e.metrics.RecordFocusEvent()
	tree, err := e.conn.GetTree(ctx)
	if err != nil {
		var transportErr *ipc.TransportError
		if errors.As(err, &transportErr) {
			return err
		}
		e.logger.Errorf("tree snapshot unusable: %v", err)
		e.metrics.RecordSkip(skipReasonBadTree)
		return nil
	}
	win, err := state.LocateFocused(tree)
	if err != nil {
		if errors.Is(err, state.ErrNoFocusedWindow) {
			e.logger.Debugf("no focused window, nothing to do")
			e.metrics.RecordSkip(skipReasonNoFocus)
			return nil
		}
		return err
	}
	if !rules.WorkspaceAllowed(win.Workspace, e.cfg.Workspaces) {
		e.logger.Debugf("workspace %q not in allowlist, skipping window %d", win.Workspace, win.ID)
		e.metrics.RecordSkip(skipReasonWorkspace)
		return nil
	}
	if reason, ok := rules.Eligible(win, e.cfg.SkipLayouts); !ok {
		e.logger.Debugf("window %d not eligible (%s)", win.ID, reason)
		e.metrics.RecordSkip(reason)
		return nil
	}
	decision := rules.Evaluate(win, e.cfg.Ratio)
	if rules.Redundant(decision, win) {
		e.logger.Tracef("parent already %s for window %d", decision.Layout(), win.ID)
		e.metrics.RecordSkip(skipReasonRedundant)
		return nil
	}
	command := decision.Command()
	if e.cfg.DryRun {
		e.logger.Infof("dry-run: would set next split to %s (window %d, %dx%d)", command, win.ID, win.Rect.Width, win.Rect.Height)
		e.metrics.RecordDecision(command, true)
		e.record(win, command, DecisionDryRun, "")
		return nil
	}
	if err := e.conn.RunCommand(ctx, command); err != nil {
		var transportErr *ipc.TransportError
		if errors.As(err, &transportErr) {
			return err
		}
		e.logger.Warnf("window manager rejected %s: %v", command, err)
		e.metrics.RecordCommandError()
		e.record(win, command, DecisionFailed, err.Error())
		return nil
	}
	e.logger.Infof("focus changed: next split set to %s (window %d, %dx%d)", command, win.ID, win.Rect.Width, win.Rect.Height)
	e.metrics.RecordDecision(command, false)
	e.record(win, command, DecisionApplied, "")
	return nil
}

func (e *Engine) record(win *state.Window, command string, status DecisionStatus, errText string) {
	e.history.record(DecisionRecord{
		Timestamp: time.Now(),
		WindowID:  win.ID,
		Workspace: win.Workspace,
		Width:     win.Rect.Width,
		Height:    win.Rect.Height,
		Command:   command,
		Status:    status,
		Error:     errText,
	})
}

func (e *Engine) setConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	if connected {
		e.connectedAt = time.Now()
	}
	e.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
