// Command bench replays synthetic focus events through the decision engine
// and reports per-event latency. The window manager is replaced by an
// in-memory tree, so the numbers isolate the engine and policy code.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/config"
	"github.com/Ruixi-rebirth/async-autotiling/internal/engine"
	"github.com/Ruixi-rebirth/async-autotiling/internal/ipc"
	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

type benchLatencyStats struct {
	Min    float64 `json:"minMs"`
	Mean   float64 `json:"meanMs"`
	Median float64 `json:"medianMs"`
	P95    float64 `json:"p95Ms"`
	Max    float64 `json:"maxMs"`
}

type benchAllocationStats struct {
	Total         uint64  `json:"totalAllocations"`
	PerEvent      float64 `json:"allocationsPerEvent"`
	BytesTotal    uint64  `json:"bytesTotal"`
	BytesPerEvent float64 `json:"bytesPerEvent"`
	MiBTotal      float64 `json:"miBTotal"`
}

type benchCommandStats struct {
	Total        int     `json:"total"`
	PerIteration float64 `json:"perIteration"`
	PerEvent     float64 `json:"perEvent"`
}

type benchSummary struct {
	Windows            int                  `json:"windows"`
	Depth              int                  `json:"depth"`
	Iterations         int                  `json:"iterations"`
	EventsPerIteration int                  `json:"eventsPerIteration"`
	TotalEvents        int                  `json:"totalEvents"`
	WarmupIterations   int                  `json:"warmupIterations"`
	Commands           benchCommandStats    `json:"commands"`
	Latency            benchLatencyStats    `json:"latency"`
	IterationDuration  benchLatencyStats    `json:"iterationDuration"`
	Allocations        benchAllocationStats `json:"allocations"`
	TotalDurationMs    float64              `json:"totalDurationMs"`
	EventsPerSecond    float64              `json:"eventsPerSecond"`
}

type benchReport struct {
	Summary     benchSummary `json:"summary"`
	DurationsMs []float64    `json:"durationsMs"`
}

// benchConn serves a mutable in-memory tree instead of a window manager
// socket. Focus rotates across the leaf windows between events.
type benchConn struct {
	mu       sync.Mutex
	tree     *state.Node
	leaves   []*state.Node
	focusIdx int
	commands int
}

func newBenchConn(windows, depth int) *benchConn {
	tree, leaves := buildTree(windows, depth)
	leaves[0].Focused = true
	return &benchConn{tree: tree, leaves: leaves}
}

func (b *benchConn) Connect(context.Context) error { return nil }

func (b *benchConn) Close() error { return nil }

func (b *benchConn) GetTree(context.Context) (*state.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tree, nil
}

func (b *benchConn) RunCommand(context.Context, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands++
	return nil
}

func (b *benchConn) advanceFocus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves[b.focusIdx].Focused = false
	b.focusIdx = (b.focusIdx + 1) % len(b.leaves)
	b.leaves[b.focusIdx].Focused = true
}

func (b *benchConn) Commands() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commands
}

// buildTree constructs one workspace holding the requested number of leaf
// windows, nested into alternating split containers the way an interactive
// session grows. Leaf geometry alternates between wide and tall so both
// decision branches are exercised.
func buildTree(windows, depth int) (*state.Node, []*state.Node) {
	workspace := &state.Node{ID: 3, Name: "1", Type: state.NodeWorkspace, Layout: layout.SplitH, Rect: layout.Rect{Width: 2560, Height: 1440}}
	output := &state.Node{ID: 2, Name: "BENCH-1", Type: state.NodeOutput, Layout: layout.Output, Nodes: []*state.Node{workspace}}
	root := &state.Node{ID: 1, Name: "root", Type: state.NodeRoot, Layout: layout.SplitH, Nodes: []*state.Node{output}}

	leaves := make([]*state.Node, 0, windows)
	nextID := int64(10)
	parent := workspace
	perLevel := windows / depth
	if perLevel < 1 {
		perLevel = 1
	}

	for level := 0; level < depth && len(leaves) < windows; level++ {
		count := perLevel
		if level == depth-1 {
			count = windows - len(leaves)
		}
		for i := 0; i < count; i++ {
			rect := layout.Rect{Width: 1600, Height: 900}
			if len(leaves)%2 == 1 {
				rect = layout.Rect{Width: 800, Height: 1200}
			}
			leaf := &state.Node{
				ID:     nextID,
				Name:   fmt.Sprintf("window-%d", nextID),
				Type:   state.NodeCon,
				Layout: layout.KindNone,
				Rect:   rect,
			}
			nextID++
			parent.Nodes = append(parent.Nodes, leaf)
			leaves = append(leaves, leaf)
		}
		if level < depth-1 && len(leaves) < windows {
			kind := layout.SplitV
			if parent.Layout == layout.SplitV {
				kind = layout.SplitH
			}
			container := &state.Node{
				ID:     nextID,
				Type:   state.NodeCon,
				Layout: kind,
				Rect:   layout.Rect{Width: 1280, Height: 1440},
			}
			nextID++
			parent.Nodes = append(parent.Nodes, container)
			parent = container
		}
	}
	return root, leaves
}

func main() {
	windows := flag.Int("windows", 32, "number of leaf windows in the synthetic tree")
	depth := flag.Int("depth", 4, "container nesting depth of the synthetic tree")
	events := flag.Int("events", 1000, "focus events to replay per iteration")
	iterations := flag.Int("iterations", 10, "number of timed iterations")
	warmup := flag.Int("warmup", 1, "number of warm-up iterations to run before timing")
	ratio := flag.Float64("ratio", 1.0, "height/width threshold for vertical splits")
	logLevel := flag.String("log-level", "warn", "log level (trace|debug|info|warn|error|quiet)")
	cpuProfile := flag.String("cpu-profile", "", "write CPU profile to file")
	memProfile := flag.String("mem-profile", "", "write heap profile to file")
	outputPath := flag.String("output", "-", "write JSON report to file ('-' for stdout)")
	humanSummary := flag.Bool("human", false, "print a tabular summary alongside the JSON output")
	flag.Parse()

	if *windows <= 0 {
		exitErr(errors.New("windows must be positive"))
	}
	if *depth <= 0 {
		exitErr(errors.New("depth must be positive"))
	}
	if *events <= 0 {
		exitErr(errors.New("events must be positive"))
	}
	if *iterations <= 0 {
		exitErr(errors.New("iterations must be positive"))
	}
	if *warmup < 0 {
		exitErr(errors.New("warmup must be zero or positive"))
	}

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfg := config.Default()
	cfg.Ratio = *ratio
	cfg.LogLevel = *logLevel
	if err := cfg.Validate(); err != nil {
		exitErr(err)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			exitErr(fmt.Errorf("create cpu profile: %w", err))
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			exitErr(fmt.Errorf("start cpu profile: %w", err))
		}
		defer pprof.StopCPUProfile()
	}

	ctx := context.Background()

	for i := 0; i < *warmup; i++ {
		if _, _, _, err := replayIteration(ctx, cfg, logger, *windows, *depth, *events, false); err != nil {
			exitErr(fmt.Errorf("warmup iteration %d: %w", i+1, err))
		}
	}

	runtime.GC()
	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)

	durations := make([]time.Duration, 0, *events*(*iterations))
	iterationDurations := make([]time.Duration, 0, *iterations)
	totalCommands := 0

	for i := 0; i < *iterations; i++ {
		iterationDuration, commands, eventDurations, err := replayIteration(ctx, cfg, logger, *windows, *depth, *events, true)
		if err != nil {
			exitErr(fmt.Errorf("iteration %d: %w", i+1, err))
		}
		iterationDurations = append(iterationDurations, iterationDuration)
		totalCommands += commands
		durations = append(durations, eventDurations...)
	}

	runtime.GC()
	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			exitErr(fmt.Errorf("create mem profile: %w", err))
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			exitErr(fmt.Errorf("write heap profile: %w", err))
		}
	}

	report := buildReport(*windows, *depth, *iterations, *warmup, *events, durations, iterationDurations, totalCommands, startMem, endMem)
	if err := writeReport(report, *outputPath); err != nil {
		exitErr(fmt.Errorf("encode report: %w", err))
	}

	if *humanSummary {
		if err := printHumanSummary(report.Summary, os.Stdout); err != nil {
			exitErr(fmt.Errorf("print human summary: %w", err))
		}
	}
}

// replayIteration runs one full pass of focus events against a fresh engine
// and fresh tree so iterations do not share history.
func replayIteration(ctx context.Context, cfg config.Config, logger *util.Logger, windows, depth, events int, capture bool) (time.Duration, int, []time.Duration, error) {
	conn := newBenchConn(windows, depth)
	eng := engine.New(cfg, conn, logger)

	var eventDurations []time.Duration
	if capture {
		eventDurations = make([]time.Duration, 0, events)
	}

	iterationStart := time.Now()
	for i := 0; i < events; i++ {
		start := time.Now()
		if err := eng.ApplyEvent(ctx, ipc.Event{Change: ipc.WindowChangeFocus}); err != nil {
			return 0, 0, nil, fmt.Errorf("apply event %d: %w", i+1, err)
		}
		if capture {
			eventDurations = append(eventDurations, time.Since(start))
		}
		conn.advanceFocus()
	}
	iterationDuration := time.Since(iterationStart)

	return iterationDuration, conn.Commands(), eventDurations, nil
}

func buildReport(windows, depth, iterations, warmup, eventsPerIteration int, durations, iterationDurations []time.Duration, commands int, start, end runtime.MemStats) benchReport {
	totalEvents := eventsPerIteration * iterations
	latencyStats, totalEventDuration := buildLatencyStats(durations)
	iterationStats, _ := buildLatencyStats(iterationDurations)

	allocs := end.Mallocs - start.Mallocs
	bytesAllocated := end.TotalAlloc - start.TotalAlloc

	durationsMs := make([]float64, len(durations))
	for i, d := range durations {
		durationsMs[i] = toMillis(d)
	}

	summary := benchSummary{
		Windows:            windows,
		Depth:              depth,
		Iterations:         iterations,
		WarmupIterations:   warmup,
		EventsPerIteration: eventsPerIteration,
		TotalEvents:        totalEvents,
		Commands: benchCommandStats{
			Total:        commands,
			PerIteration: safeDivide(commands, iterations),
			PerEvent:     safeDivide(commands, totalEvents),
		},
		Latency:           latencyStats,
		IterationDuration: iterationStats,
		Allocations: benchAllocationStats{
			Total:         allocs,
			PerEvent:      safeDivideUint(allocs, totalEvents),
			BytesTotal:    bytesAllocated,
			BytesPerEvent: safeDivideUint(bytesAllocated, totalEvents),
			MiBTotal:      float64(bytesAllocated) / (1024 * 1024),
		},
		TotalDurationMs: toMillis(totalEventDuration),
		EventsPerSecond: eventsPerSecond(totalEventDuration, totalEvents),
	}

	return benchReport{Summary: summary, DurationsMs: durationsMs}
}

func buildLatencyStats(durations []time.Duration) (benchLatencyStats, time.Duration) {
	stats := benchLatencyStats{}
	if len(durations) == 0 {
		return stats, 0
	}
	total := time.Duration(0)
	for _, d := range durations {
		total += d
	}
	mean := total / time.Duration(len(durations))
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	stats.Min = toMillis(sorted[0])
	stats.Mean = toMillis(mean)
	stats.Median = toMillis(percentile(sorted, 0.50))
	stats.P95 = toMillis(percentile(sorted, 0.95))
	stats.Max = toMillis(sorted[len(sorted)-1])
	return stats, total
}

func safeDivide(total int, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func safeDivideUint(total uint64, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func eventsPerSecond(total time.Duration, events int) float64 {
	if total <= 0 || events == 0 {
		return 0
	}
	seconds := total.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(events) / seconds
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeReport(report benchReport, outputPath string) error {
	var (
		w   io.Writer
		out *os.File
		err error
	)
	switch strings.TrimSpace(outputPath) {
	case "", "-":
		w = os.Stdout
	default:
		dir := filepath.Dir(outputPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
		}
		out, err = os.Create(outputPath)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printHumanSummary(summary benchSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Tree:\t%d windows, depth %d\n", summary.Windows, summary.Depth); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Iterations:\t%d\n", summary.Iterations); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Warmup iterations:\t%d\n", summary.WarmupIterations); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Events/iteration:\t%d\n", summary.EventsPerIteration); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Total events:\t%d\n", summary.TotalEvents); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Commands:\t%d (%.2f / iter, %.2f / event)\n", summary.Commands.Total, summary.Commands.PerIteration, summary.Commands.PerEvent); err != nil {
		return err
	}
	latency := summary.Latency
	if _, err := fmt.Fprintf(tw, "Latency (ms):\tmin %.3f | mean %.3f | median %.3f | p95 %.3f | max %.3f\n", latency.Min, latency.Mean, latency.Median, latency.P95, latency.Max); err != nil {
		return err
	}
	iteration := summary.IterationDuration
	if _, err := fmt.Fprintf(tw, "Iteration duration (ms):\tmin %.2f | mean %.2f | median %.2f | p95 %.2f | max %.2f\n", iteration.Min, iteration.Mean, iteration.Median, iteration.P95, iteration.Max); err != nil {
		return err
	}
	allocs := summary.Allocations
	if _, err := fmt.Fprintf(tw, "Allocations:\t%d total (%.2f / event)\n", allocs.Total, allocs.PerEvent); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Bytes allocated:\t%d B (%.2f MiB, %.2f / event)\n", allocs.BytesTotal, allocs.MiBTotal, allocs.BytesPerEvent); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Events/sec:\t%.0f\n", summary.EventsPerSecond); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
