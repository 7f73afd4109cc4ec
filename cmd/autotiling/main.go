package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ruixi-rebirth/async-autotiling/internal/config"
	"github.com/Ruixi-rebirth/async-autotiling/internal/control"
	"github.com/Ruixi-rebirth/async-autotiling/internal/engine"
	"github.com/Ruixi-rebirth/async-autotiling/internal/ipc"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

type rootFlags struct {
	ratio         float64
	workspaces    string
	once          bool
	quiet         bool
	logLevel      string
	dryRun        bool
	skipLayouts   string
	socket        string
	controlSocket string
	noControl     bool
}

func newRootCmd(run func(ctx context.Context, cfg config.Config) error) *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "autotiling",
		Short: "Automatic split orientation for sway and i3",
		Long: "autotiling listens for window focus events and sets the next split\n" +
			"orientation of the focused container from its aspect ratio: wide\n" +
			"windows split horizontally, tall windows split vertically.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().Float64Var(&flags.ratio, "ratio", 1.0, "aspect ratio threshold; split vertically when height > width/ratio")
	cmd.Flags().StringVar(&flags.workspaces, "workspace", "", "comma-separated workspace names to manage (empty manages all)")
	cmd.Flags().BoolVar(&flags.once, "once", false, "evaluate the focused window once and exit")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress all log output")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "log decisions without issuing commands")
	cmd.Flags().StringVar(&flags.skipLayouts, "skip-layouts", "", "comma-separated layout kinds to exclude beyond the fixed policy")
	cmd.Flags().StringVar(&flags.socket, "socket", "", "window manager socket path (defaults to $SWAYSOCK, then $I3SOCK)")
	cmd.Flags().StringVar(&flags.controlSocket, "control-socket", "", "control API socket path")
	cmd.Flags().BoolVar(&flags.noControl, "no-control", false, "do not serve the control API")
	return cmd
}

func buildConfig(flags rootFlags) (config.Config, error) {
	cfg := config.Default()
	cfg.Ratio = flags.ratio
	cfg.Workspaces = config.ParseWorkspaces(flags.workspaces)
	cfg.Once = flags.once
	cfg.Quiet = flags.quiet
	cfg.LogLevel = flags.logLevel
	cfg.DryRun = flags.dryRun
	cfg.Socket = flags.socket
	cfg.ControlSocket = flags.controlSocket
	cfg.NoControl = flags.noControl
	skip, err := config.ParseSkipLayouts(flags.skipLayouts)
	if err != nil {
		return config.Config{}, err
	}
	cfg.SkipLayouts = skip
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger := util.NewLogger(cfg.EffectiveLogLevel())

	socketPath, err := ipc.SocketPath(cfg.Socket)
	if err != nil {
		return err
	}
	cfg.Socket = socketPath

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ipc.NewClient(cfg.Socket)
	eng := engine.New(cfg, client, logger)

	if cfg.Once {
		err := eng.RunOnce(ctx)
		if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	if !cfg.NoControl {
		ctrlSrv, err := control.NewServer(eng, logger, cfg.ControlSocket)
		if err != nil {
			return fmt.Errorf("start control server: %w", err)
		}
		go func() {
			errs <- ctrlSrv.Serve(ctx)
		}()
	}

	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof("daemon stopped")
	return nil
}

func main() {
	root := newRootCmd(run)
	if err := root.ExecuteContext(context.Background()); err != nil {
		exitErr(err)
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
