package layout

// Rect represents a container geometry in pixels, matching the window
// manager's tree coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// TallerThan reports whether the rect's height exceeds its width divided by
// ratio. The comparison is strict: a square rect at ratio 1.0 is not taller.
func (r Rect) TallerThan(ratio float64) bool {
	return float64(r.Height) > float64(r.Width)/ratio
}

// Empty reports whether the rect has no usable area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
