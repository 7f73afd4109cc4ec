package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ruixi-rebirth/async-autotiling/internal/engine"
	"github.com/Ruixi-rebirth/async-autotiling/internal/metrics"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

// Server hosts the daemon's control socket and serves introspection
// requests.
type Server struct {
	engine     *engine.Engine
	logger     *util.Logger
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server around the running engine. An empty
// path selects the default runtime location.
func NewServer(eng *engine.Engine, logger *util.Logger, socketPath string) (*Server, error) {
	if socketPath == "" {
		var err error
		socketPath, err = DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Server{
		engine:     eng,
		logger:     logger,
		socketPath: socketPath,
	}, nil
}

// Serve listens on the control socket until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, context.Canceled
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	var req Request
	if err := dec.Decode(&req); err != nil {
		s.writeError(conn, fmt.Errorf("decode request: %w", err))
		return
	}
	switch req.Action {
	case ActionStatus:
		s.writeOK(conn, statusInfo(s.engine.Status()))
	case ActionHistory:
		limit, _ := req.Params["limit"].(float64)
		s.writeOK(conn, historyResult(s.engine.History(int(limit))))
	case ActionMetrics:
		s.writeOK(conn, metricsInfo(s.engine.Metrics()))
	default:
		s.writeError(conn, fmt.Errorf("unknown action %q", req.Action))
	}
}

func statusInfo(st engine.Status) StatusInfo {
	info := StatusInfo{
		Connected:   st.Connected,
		ConnectedAt: st.ConnectedAt,
		StartedAt:   st.StartedAt,
		Ratio:       st.Ratio,
		DryRun:      st.DryRun,
		Applied:     SplitTotals(st.Applied),
		Simulated:   SplitTotals(st.Simulated),
	}
	if len(st.Workspaces) > 0 {
		info.Workspaces = append([]string(nil), st.Workspaces...)
	}
	for _, kind := range st.SkipLayouts {
		info.SkipLayouts = append(info.SkipLayouts, string(kind))
	}
	if st.LastDecision != nil {
		last := decisionInfo(*st.LastDecision)
		info.LastDecision = &last
	}
	return info
}

func historyResult(records []engine.DecisionRecord) HistoryResult {
	result := HistoryResult{Decisions: make([]Decision, 0, len(records))}
	for _, rec := range records {
		result.Decisions = append(result.Decisions, decisionInfo(rec))
	}
	return result
}

func decisionInfo(rec engine.DecisionRecord) Decision {
	return Decision{
		Seq:       rec.Seq,
		Timestamp: rec.Timestamp,
		WindowID:  rec.WindowID,
		Workspace: rec.Workspace,
		Width:     rec.Width,
		Height:    rec.Height,
		Command:   rec.Command,
		Status:    string(rec.Status),
		Error:     rec.Error,
	}
}

func metricsInfo(snap metrics.Snapshot) MetricsInfo {
	info := MetricsInfo{
		Started:       snap.Started,
		FocusEvents:   snap.FocusEvents,
		Applied:       SplitTotals(snap.Applied),
		DryRun:        SplitTotals(snap.DryRun),
		CommandErrors: snap.CommandErrors,
		Reconnects:    snap.Reconnects,
		Disconnects:   snap.Disconnects,
		LastDecision:  snap.LastDecision,
	}
	if len(snap.Skips) > 0 {
		info.Skips = make([]SkipCount, 0, len(snap.Skips))
		for _, skip := range snap.Skips {
			info.Skips = append(info.Skips, SkipCount(skip))
		}
	}
	return info
}

func (s *Server) writeOK(conn net.Conn, data any) {
	resp := Response{Status: StatusOK}
	if data != nil {
		resp.Data = data
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := Response{Status: StatusError}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
