package state

import (
	"context"

	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
)

// NodeType identifies a container's role in the window manager's tree.
type NodeType string

const (
	NodeRoot        NodeType = "root"
	NodeOutput      NodeType = "output"
	NodeWorkspace   NodeType = "workspace"
	NodeCon         NodeType = "con"
	NodeFloatingCon NodeType = "floating_con"
	NodeDockarea    NodeType = "dockarea"
)

// Node is one container in the i3/sway layout tree, decoded straight from
// the GET_TREE reply.
type Node struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Type           NodeType    `json:"type"`
	Layout         layout.Kind `json:"layout"`
	Percent        float64     `json:"percent"`
	Rect           layout.Rect `json:"rect"`
	Focused        bool        `json:"focused"`
	Focus          []int64     `json:"focus"`
	FullscreenMode int         `json:"fullscreen_mode"`
	Nodes          []*Node     `json:"nodes"`
	FloatingNodes  []*Node     `json:"floating_nodes"`
}

// TreeSource abstracts the tree query required to build window snapshots.
type TreeSource interface {
	GetTree(ctx context.Context) (*Node, error)
}

// Walk visits the tree in depth-first preorder, tiled children before
// floating ones. The walk stops when fn returns false.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil || fn == nil {
		return
	}
	walk(root, fn)
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Nodes {
		if !walk(child, fn) {
			return false
		}
	}
	for _, child := range n.FloatingNodes {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}
