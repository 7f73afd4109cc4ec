// Command smoke connects to the window manager, inspects the focused window,
// and reports the split decision the daemon would make. It never sends
// commands, so it is safe to run against a live session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ruixi-rebirth/async-autotiling/internal/config"
	"github.com/Ruixi-rebirth/async-autotiling/internal/ipc"
	"github.com/Ruixi-rebirth/async-autotiling/internal/rules"
	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

func main() {
	socket := flag.String("socket", "", "path to the i3/sway IPC socket (defaults to $SWAYSOCK, then $I3SOCK)")
	ratio := flag.Float64("ratio", 1.0, "height/width threshold for vertical splits")
	workspaces := flag.String("workspace", "", "comma-separated workspace allowlist (empty for all)")
	skipLayouts := flag.String("skip-layouts", "", "comma-separated layout kinds to skip (tabbed,stacked,splith,splitv)")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error|quiet)")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfg := config.Default()
	cfg.Ratio = *ratio
	cfg.LogLevel = *logLevel
	cfg.Workspaces = config.ParseWorkspaces(*workspaces)
	skip, err := config.ParseSkipLayouts(*skipLayouts)
	if err != nil {
		exitErr(err)
	}
	cfg.SkipLayouts = skip
	if err := cfg.Validate(); err != nil {
		exitErr(err)
	}

	socketPath, err := ipc.SocketPath(*socket)
	if err != nil {
		exitErr(err)
	}
	cfg.Socket = socketPath

	fmt.Println("=== Effective Configuration ===")
	if err := marshalYAML(cfg); err != nil {
		logger.Warnf("failed to print config: %v", err)
	}

	client := ipc.NewClient(socketPath)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		exitErr(fmt.Errorf("connect to %s: %w", socketPath, err))
	}
	defer client.Close()

	tree, err := client.GetTree(ctx)
	if err != nil {
		exitErr(fmt.Errorf("query tree: %w", err))
	}

	win, err := state.LocateFocused(tree)
	if errors.Is(err, state.ErrNoFocusedWindow) {
		fmt.Println("\nNo focused window; nothing to evaluate.")
		return
	}
	if err != nil {
		exitErr(fmt.Errorf("locate focused window: %w", err))
	}

	fmt.Println("\n=== Focused Window ===")
	if err := marshalYAML(win); err != nil {
		logger.Warnf("failed to print window: %v", err)
	}

	fmt.Println("\n=== Verdict ===")
	if !rules.WorkspaceAllowed(win.Workspace, cfg.Workspaces) {
		fmt.Printf("skip: workspace %q not in allowlist\n", win.Workspace)
		return
	}
	if reason, ok := rules.Eligible(win, cfg.SkipLayouts); !ok {
		fmt.Printf("skip: window not eligible (%s)\n", reason)
		return
	}
	decision := rules.Evaluate(win, cfg.Ratio)
	if rules.Redundant(decision, win) {
		fmt.Printf("skip: parent layout already %s\n", decision.Layout())
		return
	}
	fmt.Printf("would run: %s (window %d, %dx%d)\n", decision.Command(), win.ID, win.Rect.Width, win.Rect.Height)
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func marshalYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
