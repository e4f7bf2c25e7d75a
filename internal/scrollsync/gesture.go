package scrollsync

import "math"

// DragThreshold is how far, in pixels along either axis, the pointer may
// move before a press stops counting as a click.
const DragThreshold = 3.0

// Gesture classifies one pointer press as a click or a drag.
type Gesture struct {
	active  bool
	dragged bool
	startX  float64
	startY  float64
}

// Down starts a gesture.
func (g *Gesture) Down(x, y float64) {
	*g = Gesture{active: true, startX: x, startY: y}
}

// Move updates the gesture and returns the offset from the press point,
// which the surface uses to pan.
func (g *Gesture) Move(x, y float64) (dx, dy float64) {
	if !g.active {
		return 0, 0
	}
	dx, dy = x-g.startX, y-g.startY
	if math.Abs(dx) > DragThreshold || math.Abs(dy) > DragThreshold {
		g.dragged = true
	}
	return dx, dy
}

// Up ends the gesture and reports whether it was a click.
func (g *Gesture) Up() bool {
	if !g.active {
		return false
	}
	click := !g.dragged
	g.active = false
	return click
}
