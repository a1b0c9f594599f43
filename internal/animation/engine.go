// Package animation generates the deterministic moving-circle sequence and
// its closed-form ground truth.
package animation

import (
	"image"
	"sync/atomic"

	"github.com/1ureka/circletrack/internal/media"
)

// Animation parameters.
const (
	Width  = 640
	Height = 480
	Radius = 50
	Step   = 10 // pixels per tick along both axes
	Margin = 5  // gap between the frame edge and the first position
	Period = 60 // ticks per loop: 30 forward, 30 back

	half = Period / 2
)

// Intensity of circle pixels; the background is 0.
const foreground = 255

// Engine is the single owner of the animation tick. Advance is its only
// mutation point and must be called from one goroutine; Tick,
// CurrentFrame and CurrentGroundTruth may be read from anywhere.
type Engine struct {
	advances atomic.Uint64

	// rendered[k] is the image for path step k; frames for ticks k and
	// Period-1-k share it.
	rendered [half]*image.Gray
}

// NewEngine pre-renders every distinct frame of the loop.
func NewEngine() *Engine {
	e := &Engine{}
	for k := range e.rendered {
		e.rendered[k] = Render(position(k))
	}
	return e
}

// Advance moves the animation one tick forward and returns the new tick.
func (e *Engine) Advance() int {
	return int(e.advances.Add(1) % Period)
}

// Tick returns the current tick in [0, Period).
func (e *Engine) Tick() int {
	return int(e.advances.Load() % Period)
}

// CurrentFrame returns the frame for the current tick without mutating state.
func (e *Engine) CurrentFrame() media.Frame {
	n := e.advances.Load()
	tick := int(n % Period)
	truth := GroundTruth(tick)
	return media.Frame{
		Seq:         uint32(n),
		Index:       tick,
		Image:       e.rendered[pathStep(tick)],
		GroundTruth: &truth,
	}
}

// CurrentGroundTruth returns the closed-form coordinate for the current tick.
func (e *Engine) CurrentGroundTruth() media.Coordinate {
	return GroundTruth(e.Tick())
}

// GroundTruth returns the coordinate of the circle's apex (its topmost pixel)
// at the given tick. The tick is reduced modulo Period first.
func GroundTruth(tick int) media.Coordinate {
	return position(pathStep(tick))
}

// pathStep folds a tick onto the forward path: k for k < 30, 59-k otherwise.
func pathStep(tick int) int {
	k := ((tick % Period) + Period) % Period
	if k >= half {
		k = Period - 1 - k
	}
	return k
}

// position is the apex of the circle at path step k, on the diagonal.
func position(k int) media.Coordinate {
	p := Radius + Margin + Step*k
	return media.Coordinate{X: p, Y: p}
}

// Render draws a filled circle of Radius whose apex is at the given point:
// the centre sits Radius rows below it. The apex is the only circle pixel on
// its row, so it is the first foreground pixel in raster order.
func Render(apex media.Coordinate) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	cx, cy := apex.X, apex.Y+Radius

	for dy := -Radius; dy <= Radius; dy++ {
		y := cy + dy
		if y < 0 || y >= Height {
			continue
		}
		row := img.Pix[y*img.Stride:]
		for dx := -Radius; dx <= Radius; dx++ {
			x := cx + dx
			if x < 0 || x >= Width || dx*dx+dy*dy > Radius*Radius {
				continue
			}
			row[x] = foreground
		}
	}
	return img
}
