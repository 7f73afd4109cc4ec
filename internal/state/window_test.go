package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
)

const sampleTree = `{
	"id": 1, "name": "root", "type": "root", "layout": "splith",
	"rect": {"x": 0, "y": 0, "width": 3840, "height": 1080},
	"percent": null,
	"nodes": [
		{
			"id": 2, "name": "eDP-1", "type": "output", "layout": "output",
			"rect": {"x": 0, "y": 0, "width": 1920, "height": 1080},
			"nodes": [
				{
					"id": 3, "name": "1: web", "type": "workspace", "layout": "splith",
					"rect": {"x": 0, "y": 0, "width": 1920, "height": 1056},
					"focus": [4, 5],
					"nodes": [
						{
							"id": 4, "name": "firefox", "type": "con", "layout": "none",
							"rect": {"x": 0, "y": 24, "width": 960, "height": 1056},
							"percent": 0.5, "focused": true
						},
						{
							"id": 5, "name": "term", "type": "con", "layout": "none",
							"rect": {"x": 960, "y": 24, "width": 960, "height": 1056},
							"percent": 0.5
						}
					],
					"floating_nodes": [
						{
							"id": 6, "type": "floating_con", "layout": "splith",
							"rect": {"x": 100, "y": 100, "width": 640, "height": 480},
							"nodes": [
								{
									"id": 7, "name": "scratch", "type": "con", "layout": "none",
									"rect": {"x": 100, "y": 100, "width": 640, "height": 480}
								}
							]
						}
					]
				}
			]
		}
	]
}`

func decodeTree(t *testing.T, raw string) *Node {
	t.Helper()
	var root Node
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	return &root
}

func TestLocateFocusedResolvesWorkspaceAndParent(t *testing.T) {
	root := decodeTree(t, sampleTree)

	win, err := LocateFocused(root)
	if err != nil {
		t.Fatalf("LocateFocused returned error: %v", err)
	}
	if win.ID != 4 {
		t.Fatalf("expected focused window 4, got %d", win.ID)
	}
	if win.Workspace != "1: web" {
		t.Fatalf("expected workspace %q, got %q", "1: web", win.Workspace)
	}
	if win.ParentLayout != layout.SplitH {
		t.Fatalf("expected parent layout splith, got %v", win.ParentLayout)
	}
	if win.Rect.Width != 960 || win.Rect.Height != 1056 {
		t.Fatalf("unexpected rect %+v", win.Rect)
	}
	if win.Floating || win.Fullscreen {
		t.Fatalf("expected tiled, non-fullscreen window, got %+v", win)
	}
}

func TestLocateFocusedPrefersDeepestNode(t *testing.T) {
	root := decodeTree(t, sampleTree)
	// Simulate a tree that reports focus on the workspace as well.
	root.Nodes[0].Nodes[0].Focused = true

	win, err := LocateFocused(root)
	if err != nil {
		t.Fatalf("LocateFocused returned error: %v", err)
	}
	if win.ID != 4 {
		t.Fatalf("expected deepest focused node 4, got %d", win.ID)
	}
}

func TestLocateFocusedDetectsFloating(t *testing.T) {
	root := decodeTree(t, sampleTree)
	root.Nodes[0].Nodes[0].Nodes[0].Focused = false
	root.Nodes[0].Nodes[0].FloatingNodes[0].Nodes[0].Focused = true

	win, err := LocateFocused(root)
	if err != nil {
		t.Fatalf("LocateFocused returned error: %v", err)
	}
	if win.ID != 7 {
		t.Fatalf("expected floating child 7, got %d", win.ID)
	}
	if !win.Floating {
		t.Fatalf("expected floating window to be marked floating")
	}
	if win.Workspace != "1: web" {
		t.Fatalf("expected floating window to keep workspace, got %q", win.Workspace)
	}
}

func TestLocateFocusedDetectsFullscreen(t *testing.T) {
	root := decodeTree(t, sampleTree)
	root.Nodes[0].Nodes[0].Nodes[0].FullscreenMode = 1

	win, err := LocateFocused(root)
	if err != nil {
		t.Fatalf("LocateFocused returned error: %v", err)
	}
	if !win.Fullscreen {
		t.Fatalf("expected fullscreen_mode > 0 to mark the window fullscreen")
	}
}

func TestLocateFocusedNoFocus(t *testing.T) {
	root := decodeTree(t, sampleTree)
	root.Nodes[0].Nodes[0].Nodes[0].Focused = false

	if _, err := LocateFocused(root); !errors.Is(err, ErrNoFocusedWindow) {
		t.Fatalf("expected ErrNoFocusedWindow, got %v", err)
	}
	if _, err := LocateFocused(nil); !errors.Is(err, ErrNoFocusedWindow) {
		t.Fatalf("expected ErrNoFocusedWindow for nil tree, got %v", err)
	}
}

func TestWalkVisitsFloatingAndStops(t *testing.T) {
	root := decodeTree(t, sampleTree)

	var ids []int64
	Walk(root, func(n *Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	if len(ids) != 7 {
		t.Fatalf("expected Walk to visit 7 nodes, visited %d (%v)", len(ids), ids)
	}

	var visited int
	Walk(root, func(n *Node) bool {
		visited++
		return n.ID != 3
	})
	if visited != 3 {
		t.Fatalf("expected Walk to stop after node 3, visited %d", visited)
	}
}
