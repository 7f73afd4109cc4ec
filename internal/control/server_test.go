package control

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/config"
	"github.com/Ruixi-rebirth/async-autotiling/internal/engine"
	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

type fakeConn struct {
	tree *state.Node
}

func (f *fakeConn) Connect(context.Context) error { return nil }

func (f *fakeConn) GetTree(context.Context) (*state.Node, error) { return f.tree, nil }

func (f *fakeConn) RunCommand(context.Context, string) error { return nil }

func (f *fakeConn) Close() error { return nil }

func tallTree() *state.Node {
	return &state.Node{
		ID:     1,
		Type:   state.NodeRoot,
		Layout: layout.SplitH,
		Nodes: []*state.Node{{
			ID:     2,
			Type:   state.NodeOutput,
			Layout: layout.Output,
			Nodes: []*state.Node{{
				ID:     3,
				Type:   state.NodeWorkspace,
				Name:   "1",
				Layout: layout.SplitH,
				Nodes: []*state.Node{{
					ID:      4,
					Type:    state.NodeCon,
					Layout:  layout.KindNone,
					Rect:    layout.Rect{Width: 800, Height: 1200},
					Focused: true,
				}},
			}},
		}},
	}
}

// newTestEngine builds a real engine and runs a pass so the history and
// metrics have content to serve.
func newTestEngine(t *testing.T, passes int) *engine.Engine {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	eng := engine.New(config.Config{Ratio: 1.0}, &fakeConn{tree: tallTree()}, logger)
	for i := 0; i < passes; i++ {
		if err := eng.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce returned error: %v", err)
		}
	}
	return eng
}

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var resp Response
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()

	srv.handle(serverConn)
	wg.Wait()
	return resp
}

func decodeData(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal response data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal response data: %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	eng := newTestEngine(t, 1)
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(eng, logger, filepath.Join(t.TempDir(), SocketFileName))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	resp := roundTrip(t, srv, Request{Action: ActionStatus})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	var status StatusInfo
	decodeData(t, resp, &status)
	if status.Ratio != 1.0 {
		t.Fatalf("expected ratio 1.0, got %v", status.Ratio)
	}
	if status.Applied.Vertical != 1 {
		t.Fatalf("expected one applied vertical split, got %+v", status.Applied)
	}
	if status.LastDecision == nil || status.LastDecision.Command != "splitv" {
		t.Fatalf("expected splitv last decision, got %+v", status.LastDecision)
	}
}

func TestHandleHistoryHonorsLimit(t *testing.T) {
	eng := newTestEngine(t, 3)
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(eng, logger, filepath.Join(t.TempDir(), SocketFileName))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	resp := roundTrip(t, srv, Request{Action: ActionHistory, Params: map[string]any{"limit": 2}})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	var history HistoryResult
	decodeData(t, resp, &history)
	if len(history.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(history.Decisions))
	}
	if history.Decisions[0].Seq != 2 || history.Decisions[1].Seq != 3 {
		t.Fatalf("expected the two most recent decisions oldest first, got %+v", history.Decisions)
	}
}

func TestHandleUnknownAction(t *testing.T) {
	eng := newTestEngine(t, 0)
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(eng, logger, filepath.Join(t.TempDir(), SocketFileName))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	resp := roundTrip(t, srv, Request{Action: "reload"})
	if resp.Status != StatusError || resp.Error == "" {
		t.Fatalf("expected error response for unknown action, got %+v", resp)
	}
}

func TestServeAnswersOverUnixSocket(t *testing.T) {
	eng := newTestEngine(t, 1)
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	socketPath := filepath.Join(t.TempDir(), "autotiling", SocketFileName)
	srv, err := NewServer(eng, logger, socketPath)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	var conn net.Conn
	for {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("control socket never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(Request{Action: ActionMetrics}); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	var info MetricsInfo
	decodeData(t, resp, &info)
	if info.FocusEvents != 1 || info.Applied.Vertical != 1 {
		t.Fatalf("unexpected metrics payload: %+v", info)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not exit after cancel")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed on shutdown, stat err=%v", err)
	}
}

func TestDefaultSocketPathPrefersEnvOverride(t *testing.T) {
	t.Setenv("AUTOTILING_CONTROL_SOCKET", "/tmp/custom.sock")
	path, err := DefaultSocketPath()
	if err != nil {
		t.Fatalf("DefaultSocketPath returned error: %v", err)
	}
	if path != "/tmp/custom.sock" {
		t.Fatalf("expected env override, got %q", path)
	}

	t.Setenv("AUTOTILING_CONTROL_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err = DefaultSocketPath()
	if err != nil {
		t.Fatalf("DefaultSocketPath returned error: %v", err)
	}
	if path != filepath.Join("/run/user/1000", "autotiling", SocketFileName) {
		t.Fatalf("expected runtime dir path, got %q", path)
	}
}
