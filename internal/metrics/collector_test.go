package metrics

import "testing"

func TestCollectorRecordsCounters(t *testing.T) {
	c := NewCollector()
	c.RecordFocusEvent()
	c.RecordFocusEvent()
	c.RecordDecision("splitv", false)
	c.RecordDecision("splith", false)
	c.RecordDecision("splitv", true)
	c.RecordSkip("floating")
	c.RecordSkip("floating")
	c.RecordSkip("workspace")
	c.RecordCommandError()
	c.RecordReconnect()
	c.RecordDisconnect()

	snap := c.Snapshot()
	if snap.FocusEvents != 2 {
		t.Fatalf("focus events = %d, want 2", snap.FocusEvents)
	}
	if snap.Applied.Vertical != 1 || snap.Applied.Horizontal != 1 {
		t.Fatalf("unexpected applied totals: %#v", snap.Applied)
	}
	if snap.DryRun.Vertical != 1 || snap.DryRun.Horizontal != 0 {
		t.Fatalf("unexpected dry-run totals: %#v", snap.DryRun)
	}
	if snap.CommandErrors != 1 || snap.Reconnects != 1 || snap.Disconnects != 1 {
		t.Fatalf("unexpected failure counters: %#v", snap)
	}
	if snap.Started.IsZero() {
		t.Fatalf("expected start timestamp")
	}
	if snap.LastDecision.IsZero() {
		t.Fatalf("expected last decision timestamp")
	}
}

func TestSnapshotSortsSkipReasons(t *testing.T) {
	c := NewCollector()
	c.RecordSkip("workspace")
	c.RecordSkip("floating")
	c.RecordSkip("redundant")

	snap := c.Snapshot()
	if len(snap.Skips) != 3 {
		t.Fatalf("expected 3 skip reasons, got %d", len(snap.Skips))
	}
	want := []string{"floating", "redundant", "workspace"}
	for i, reason := range want {
		if snap.Skips[i].Reason != reason {
			t.Fatalf("skip order[%d] = %q, want %q", i, snap.Skips[i].Reason, reason)
		}
	}
}

func TestCollectorIgnoresUnknownCommands(t *testing.T) {
	c := NewCollector()
	c.RecordDecision("focus left", false)
	snap := c.Snapshot()
	if snap.Applied.Vertical != 0 || snap.Applied.Horizontal != 0 {
		t.Fatalf("unknown command must not count: %#v", snap.Applied)
	}
	if !snap.LastDecision.IsZero() {
		t.Fatalf("unknown command must not stamp last decision")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordFocusEvent()
	c.RecordDecision("splitv", false)
	c.RecordSkip("floating")
	c.RecordCommandError()
	c.RecordReconnect()
	c.RecordDisconnect()
	if snap := c.Snapshot(); snap.FocusEvents != 0 {
		t.Fatalf("nil collector snapshot should be zero: %#v", snap)
	}
}
