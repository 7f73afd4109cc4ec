package rules

import (
	"github.com/Ruixi-rebirth/async-autotiling/internal/layout"
	"github.com/Ruixi-rebirth/async-autotiling/internal/state"
)

// Decision is the outcome of evaluating one focused window.
type Decision int

const (
	NoAction Decision = iota
	SplitVertical
	SplitHorizontal
)

func (d Decision) String() string {
	switch d {
	case SplitVertical:
		return "vertical"
	case SplitHorizontal:
		return "horizontal"
	default:
		return "none"
	}
}

// Command returns the literal command string sent to the window manager,
// addressed to the currently focused container.
func (d Decision) Command() string {
	switch d {
	case SplitVertical:
		return "splitv"
	case SplitHorizontal:
		return "splith"
	default:
		return ""
	}
}

// Layout returns the layout kind the decision asks the parent container for.
func (d Decision) Layout() layout.Kind {
	switch d {
	case SplitVertical:
		return layout.SplitV
	case SplitHorizontal:
		return layout.SplitH
	default:
		return layout.KindNone
	}
}

// Evaluate decides the split orientation for an eligible window: vertical
// when the window is taller than its width divided by ratio, horizontal
// otherwise. Eligibility is the caller's responsibility; every eligible
// window yields one of the two split decisions.
func Evaluate(win *state.Window, ratio float64) Decision {
	if win.Rect.TallerThan(ratio) {
		return SplitVertical
	}
	return SplitHorizontal
}

// Redundant reports whether issuing the decision would be a no-op because
// the parent container already carries that layout. Skipping these avoids
// reacting to commands the daemon itself just issued.
func Redundant(d Decision, win *state.Window) bool {
	return d.Layout() == win.ParentLayout
}

// Skip reasons reported by Eligible. Stable strings, used as metrics keys.
const (
	SkipFloating   = "floating"
	SkipFullscreen = "fullscreen"
	SkipTabbed     = "tabbed"
	SkipStacked    = "stacked"
)

// Eligible applies the eligibility gate. The fixed policy excludes floating
// windows, fullscreen windows, and windows inside tabbed or stacked
// containers; extraSkip excludes further layout kinds on top of that. The
// reason identifies which check rejected the window.
func Eligible(win *state.Window, extraSkip []layout.Kind) (reason string, ok bool) {
	if win.Floating {
		return SkipFloating, false
	}
	if win.Fullscreen {
		return SkipFullscreen, false
	}
	if win.Layout == layout.Tabbed || win.ParentLayout == layout.Tabbed {
		return SkipTabbed, false
	}
	if win.Layout == layout.Stacked || win.ParentLayout == layout.Stacked {
		return SkipStacked, false
	}
	for _, kind := range extraSkip {
		if win.Layout == kind || win.ParentLayout == kind {
			return "layout:" + string(kind), false
		}
	}
	return "", true
}
