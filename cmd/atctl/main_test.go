package main

import (
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/control"
	"github.com/Ruixi-rebirth/async-autotiling/internal/control/client"
)

func startTestServer(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "socket")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handler(conn)
	}()
	return path
}

func respondOK(t *testing.T, conn net.Conn, wantAction string, data any) control.Request {
	t.Helper()
	defer conn.Close()
	var req control.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		t.Errorf("decode request: %v", err)
		return req
	}
	if req.Action != wantAction {
		t.Errorf("unexpected action %q, want %q", req.Action, wantAction)
	}
	resp := control.Response{Status: control.StatusOK, Data: data}
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		t.Errorf("encode response: %v", err)
	}
	return req
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatusCommandRendersText(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	path := startTestServer(t, func(conn net.Conn) {
		respondOK(t, conn, control.ActionStatus, control.StatusInfo{
			Connected:   true,
			ConnectedAt: now,
			StartedAt:   now,
			Ratio:       1.618,
			Workspaces:  []string{"1", "dev"},
			DryRun:      false,
			Applied:     control.SplitTotals{Vertical: 4, Horizontal: 2},
			LastDecision: &control.Decision{
				Seq:       6,
				Timestamp: now,
				WindowID:  42,
				Workspace: "dev",
				Width:     800,
				Height:    1200,
				Command:   "splitv",
				Status:    "applied",
			},
		})
	})

	out, err := runCommand(t, "status", "--socket", path)
	if err != nil {
		t.Fatalf("status returned error: %v\noutput: %s", err, out)
	}
	for _, want := range []string{
		"Connected:",
		"Ratio:",
		"1.62",
		"1, dev",
		"Skip layouts:",
		"none",
		"4 vertical, 2 horizontal",
		`splitv for window 42 (800x1200) on "dev"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommandPassesLimitAndRendersJSON(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	path := startTestServer(t, func(conn net.Conn) {
		req := respondOK(t, conn, control.ActionHistory, control.HistoryResult{
			Decisions: []control.Decision{
				{Seq: 1, Timestamp: now, WindowID: 7, Workspace: "1", Width: 640, Height: 480, Command: "splith", Status: "applied"},
				{Seq: 2, Timestamp: now, WindowID: 8, Workspace: "1", Width: 480, Height: 640, Command: "splitv", Status: "error", Error: "no such window"},
			},
		})
		limit, ok := req.Params["limit"].(float64)
		if !ok || int(limit) != 2 {
			t.Errorf("expected limit param 2, got %#v", req.Params)
		}
	})

	out, err := runCommand(t, "history", "--limit", "2", "--json", "--socket", path)
	if err != nil {
		t.Fatalf("history returned error: %v\noutput: %s", err, out)
	}

	var decisions []client.Decision
	if err := json.Unmarshal([]byte(out), &decisions); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[1].Error != "no such window" {
		t.Fatalf("unexpected second decision: %#v", decisions[1])
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	path := startTestServer(t, func(conn net.Conn) {
		respondOK(t, conn, control.ActionHistory, control.HistoryResult{})
	})

	out, err := runCommand(t, "history", "--socket", path)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if !strings.Contains(out, "No decisions recorded.") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMetricsCommandRendersCounters(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	path := startTestServer(t, func(conn net.Conn) {
		respondOK(t, conn, control.ActionMetrics, control.MetricsInfo{
			Started:     now,
			FocusEvents: 12,
			Applied:     control.SplitTotals{Vertical: 5, Horizontal: 3},
			Skips: []control.SkipCount{
				{Reason: "workspace", Count: 2},
				{Reason: "floating", Count: 1},
			},
			CommandErrors: 1,
			Reconnects:    2,
		})
	})

	out, err := runCommand(t, "metrics", "--socket", path)
	if err != nil {
		t.Fatalf("metrics returned error: %v\noutput: %s", err, out)
	}
	for _, want := range []string{
		"Focus events:",
		"12",
		"5 vertical, 3 horizontal",
		"Skipped (workspace):",
		"Skipped (floating):",
		"Command errors:",
		"Reconnects:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsFailWhenDaemonUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := runCommand(t, "status", "--socket", path); err == nil {
		t.Fatal("expected error for unreachable daemon")
	}
}

func TestDescribeDecisionIncludesFailure(t *testing.T) {
	desc := describeDecision(client.Decision{
		Seq:       3,
		Timestamp: time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC),
		WindowID:  9,
		Workspace: "mail",
		Width:     1000,
		Height:    500,
		Command:   "splith",
		Status:    "error",
		Error:     "socket closed",
	})
	if !strings.Contains(desc, "[error]") || !strings.Contains(desc, "socket closed") {
		t.Fatalf("unexpected description: %q", desc)
	}
}
