package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

// Config is the immutable process configuration. It is built once from the
// command line, validated, and passed by value into the engine; there is no
// configuration file.
type Config struct {
	Ratio         float64       `yaml:"ratio"`
	Workspaces    []string      `yaml:"workspaces,omitempty"`
	Once          bool          `yaml:"once"`
	Quiet         bool          `yaml:"quiet"`
	LogLevel      string        `yaml:"logLevel"`
	DryRun        bool          `yaml:"dryRun"`
	SkipLayouts   []layout.Kind `yaml:"skipLayouts,omitempty"`
	Socket        string        `yaml:"socket,omitempty"`
	ControlSocket string        `yaml:"controlSocket,omitempty"`
	NoControl     bool          `yaml:"noControl,omitempty"`
}

// Default returns the configuration the daemon starts from before flags are
// applied.
func Default() Config {
	return Config{
		Ratio:    1.0,
		LogLevel: "info",
	}
}

// ParseWorkspaces splits a comma-separated allowlist. Entries are kept
// verbatim: matching is on the literal names the window manager reports, so
// nothing is trimmed or case-folded.
func ParseWorkspaces(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// ParseSkipLayouts converts a comma-separated list of layout kind names.
func ParseSkipLayouts(raw string) ([]layout.Kind, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	kinds := make([]layout.Kind, 0, len(parts))
	for _, part := range parts {
		kind, err := layout.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Validate performs basic sanity checks.
func (c Config) Validate() error {
	if math.IsInf(c.Ratio, 0) || math.IsNaN(c.Ratio) || c.Ratio <= 0 {
		return fmt.Errorf("ratio must be a positive number, got %v", c.Ratio)
	}
	if !util.ValidLogLevel(c.LogLevel) {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	seen := map[string]struct{}{}
	for _, ws := range c.Workspaces {
		if _, exists := seen[ws]; exists {
			return fmt.Errorf("duplicate workspace %q in allowlist", ws)
		}
		seen[ws] = struct{}{}
	}
	for _, kind := range c.SkipLayouts {
		if _, err := layout.ParseKind(string(kind)); err != nil {
			return fmt.Errorf("skip layouts: %w", err)
		}
	}
	return nil
}

// EffectiveLogLevel resolves the logger level; quiet wins over --log-level.
func (c Config) EffectiveLogLevel() util.LogLevel {
	if c.Quiet {
		return util.LevelQuiet
	}
	return util.ParseLogLevel(c.LogLevel)
}
