package viewport

import "go-live-preview/internal/store"

const (
	MinZoom   = 0.25
	MaxZoom   = 3.0
	ZoomStep  = 0.1
	WheelStep = 0.05
)

// Zoom is the user-controlled preview scale.
type Zoom struct {
	scale float64
}

// NewZoom returns a zoom at 100%.
func NewZoom() Zoom {
	return Zoom{scale: 1}
}

// Scale returns the current scale.
func (z Zoom) Scale() float64 {
	if z.scale == 0 {
		return 1
	}
	return z.scale
}

// Percent returns the scale rounded to a whole percentage.
func (z Zoom) Percent() int {
	return int(z.Scale()*100 + 0.5)
}

// Set clamps and applies scale.
func (z Zoom) Set(scale float64) Zoom {
	return Zoom{scale: clamp(scale)}
}

func (z Zoom) In() Zoom    { return z.Set(z.Scale() + ZoomStep) }
func (z Zoom) Out() Zoom   { return z.Set(z.Scale() - ZoomStep) }
func (z Zoom) Reset() Zoom { return NewZoom() }

// Wheel zooms by WheelStep; a positive deltaY (wheel down) zooms out.
func (z Zoom) Wheel(deltaY float64) Zoom {
	switch {
	case deltaY > 0:
		return z.Set(z.Scale() - WheelStep)
	case deltaY < 0:
		return z.Set(z.Scale() + WheelStep)
	default:
		return z
	}
}

// FitScale returns the scale that fits the widest page into the container,
// never above 1.
func FitScale(containerWidth float64, pages []*store.Page) float64 {
	if containerWidth <= 0 || len(pages) == 0 {
		return 1
	}
	maxW := 0.0
	for _, p := range pages {
		if p.Size.W > maxW {
			maxW = p.Size.W
		}
	}
	maxPx := maxW * PointToPixel
	available := containerWidth - 2*Padding
	if maxPx <= available || maxPx == 0 {
		return 1
	}
	return available / maxPx
}

func clamp(v float64) float64 {
	if v < MinZoom {
		return MinZoom
	}
	if v > MaxZoom {
		return MaxZoom
	}
	return v
}
