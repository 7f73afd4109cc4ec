package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates the daemon's in-process counters. The control API is
// the only reader; nothing is exported off the box.
type Collector struct {
	mu            sync.RWMutex
	started       time.Time
	focusEvents   uint64
	splitVertical uint64
	splitHorizont uint64
	dryRunVert    uint64
	dryRunHoriz   uint64
	skips         map[string]uint64
	commandErrors uint64
	reconnects    uint64
	disconnects   uint64
	lastDecision  time.Time
}

// SplitTotals counts issued decisions by orientation.
type SplitTotals struct {
	Vertical   uint64 `json:"vertical"`
	Horizontal uint64 `json:"horizontal"`
}

// SkipCount is one skip reason with its tally.
type SkipCount struct {
	Reason string `json:"reason"`
	Count  uint64 `json:"count"`
}

// Snapshot is the serializable view of the current counters.
type Snapshot struct {
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

// NewCollector returns a collector with counters starting at zero.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		skips:   make(map[string]uint64),
	}
}

// RecordFocusEvent counts one focus event entering the processing pipeline.
func (c *Collector) RecordFocusEvent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusEvents++
}

// RecordDecision counts one issued (or dry-run) split command.
func (c *Collector) RecordDecision(command string, dryRun bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case command == "splitv" && dryRun:
		c.dryRunVert++
	case command == "splitv":
		c.splitVertical++
	case command == "splith" && dryRun:
		c.dryRunHoriz++
	case command == "splith":
		c.splitHorizont++
	default:
		return
	}
	c.lastDecision = time.Now()
}

// RecordSkip counts one skipped event by reason.
func (c *Collector) RecordSkip(reason string) {
	if c == nil || reason == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skips == nil {
		c.skips = make(map[string]uint64)
	}
	c.skips[reason]++
}

// RecordCommandError counts a command the window manager rejected.
func (c *Collector) RecordCommandError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandErrors++
}

// RecordReconnect counts a successful connection establishment after the
// first one.
func (c *Collector) RecordReconnect() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnects++
}

// RecordDisconnect counts a session torn down by a transport failure.
func (c *Collector) RecordDisconnect() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Started:       c.started,
		FocusEvents:   c.focusEvents,
		Applied:       SplitTotals{Vertical: c.splitVertical, Horizontal: c.splitHorizont},
		DryRun:        SplitTotals{Vertical: c.dryRunVert, Horizontal: c.dryRunHoriz},
		CommandErrors: c.commandErrors,
		Reconnects:    c.reconnects,
		Disconnects:   c.disconnects,
		LastDecision:  c.lastDecision,
	}
	if len(c.skips) > 0 {
		snap.Skips = make([]SkipCount, 0, len(c.skips))
		for reason, count := range c.skips {
			snap.Skips = append(snap.Skips, SkipCount{Reason: reason, Count: count})
		}
		sort.Slice(snap.Skips, func(i, j int) bool {
			return snap.Skips[i].Reason < snap.Skips[j].Reason
		})
	}
	return snap
}
