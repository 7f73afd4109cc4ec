package state

import (
	"errors"

	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
)

// ErrNoFocusedWindow is returned when no node in the tree carries focus.
// Callers treat it as a recoverable skip, not a failure.
var ErrNoFocusedWindow = errors.New("no focused window in tree")

// Window is the flattened snapshot of the focused container. It is rebuilt
// from a fresh tree on every event and never cached across events.
type Window struct {
	ID           int64       `yaml:"id"`
	Name         string      `yaml:"name,omitempty"`
	Rect         layout.Rect `yaml:"rect"`
	Layout       layout.Kind `yaml:"layout"`
	ParentLayout layout.Kind `yaml:"parentLayout"`
	Workspace    string      `yaml:"workspace"`
	Floating     bool        `yaml:"floating"`
	Fullscreen   bool        `yaml:"fullscreen"`
	Focused      bool        `yaml:"focused"`
}

type focusHit struct {
	node      *Node
	parent    *Node
	workspace string
	floating  bool
	depth     int
}

// LocateFocused finds the focused container and resolves its owning
// workspace from the ancestry. When the tree reports focus at several
// levels, the deepest focused node wins. Returns ErrNoFocusedWindow when
// nothing is focused.
func LocateFocused(root *Node) (*Window, error) {
	var best *focusHit
	locate(root, nil, "", false, 0, &best)
	if best == nil {
		return nil, ErrNoFocusedWindow
	}
	win := &Window{
		ID:         best.node.ID,
		Name:       best.node.Name,
		Rect:       best.node.Rect,
		Layout:     best.node.Layout,
		Workspace:  best.workspace,
		Floating:   best.floating,
		Fullscreen: best.node.FullscreenMode > 0,
		Focused:    true,
	}
	if best.parent != nil {
		win.ParentLayout = best.parent.Layout
	}
	return win, nil
}

func locate(n *Node, parent *Node, workspace string, floating bool, depth int, best **focusHit) {
	if n == nil {
		return
	}
	if n.Type == NodeWorkspace {
		workspace = n.Name
	}
	if n.Type == NodeFloatingCon {
		floating = true
	}
	if n.Focused {
		if *best == nil || depth > (*best).depth {
			*best = &focusHit{node: n, parent: parent, workspace: workspace, floating: floating, depth: depth}
		}
	}
	for _, child := range n.Nodes {
		locate(child, n, workspace, floating, depth+1, best)
	}
	for _, child := range n.FloatingNodes {
		locate(child, n, workspace, true, depth+1, best)
	}
}
