package layout

import (
	"fmt"
	"strings"
)

// Kind is a container layout as reported in the window manager's tree.
type Kind string

const (
	SplitH  Kind = "splith"
	SplitV  Kind = "splitv"
	Tabbed  Kind = "tabbed"
	Stacked Kind = "stacked"
	Output  Kind = "output"
	// KindNone is reported by sway for containers without a layout of
	// their own (e.g. leaf windows).
	KindNone Kind = "none"
)

var knownKinds = map[Kind]struct{}{
	SplitH:   {},
	SplitV:   {},
	Tabbed:   {},
	Stacked:  {},
	Output:   {},
	KindNone: {},
}

// ParseKind converts a layout name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownKinds[k]; !ok {
		return "", fmt.Errorf("unknown layout kind %q", s)
	}
	return k, nil
}

// Split reports whether the kind is one of the two split layouts.
func (k Kind) Split() bool {
	return k == SplitH || k == SplitV
}

func (k Kind) String() string {
	return string(k)
}
