package engine

import (
	"sync"
	"time"
)

// DecisionStatus classifies how a decision pass ended.
type DecisionStatus string

const (
	DecisionApplied DecisionStatus = "applied"
	DecisionDryRun  DecisionStatus = "dry-run"
	DecisionFailed  DecisionStatus = "error"
)

// decisionHistoryLimit bounds the in-memory decision log.
const decisionHistoryLimit = 128

// DecisionRecord captures one split decision the engine reached for a
// focused window, whether it was applied, simulated, or rejected.
type DecisionRecord struct {
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	WindowID  int64          `json:"windowId"`
	Workspace string         `json:"workspace"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Command   string         `json:"command"`
	Status    DecisionStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// decisionLog is a fixed-capacity ring of the most recent decisions.
type decisionLog struct {
	mu      sync.Mutex
	entries []DecisionRecord
	limit   int
	seq     uint64
}

func newDecisionLog(limit int) *decisionLog {
	if limit <= 0 {
		limit = decisionHistoryLimit
	}
	return &decisionLog{limit: limit}
}

func (l *decisionLog) record(entry DecisionRecord) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	entry.Seq = l.seq
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

// snapshot returns up to limit of the most recent entries, oldest first.
// A non-positive limit returns everything retained.
func (l *decisionLog) snapshot(limit int) []DecisionRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	start := 0
	if limit > 0 && len(l.entries) > limit {
		start = len(l.entries) - limit
	}
	out := make([]DecisionRecord, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

func (l *decisionLog) last() (DecisionRecord, bool) {
	if l == nil {
		return DecisionRecord{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return DecisionRecord{}, false
	}
	return l.entries[len(l.entries)-1], true
}
