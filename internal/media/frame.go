// Package media defines the frame and coordinate types that flow between the
// animation, the video channel and the detectors.
package media

import (
	"context"
	"errors"
	"image"
	"strconv"
)

// Errors returned by the frame codec and frame sinks.
var (
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Coordinate is a pixel position in full-frame space: X is the column, Y the row.
type Coordinate struct {
	X, Y int
}

// String returns the wire form "<x>,<y>".
func (c Coordinate) String() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// Frame is an immutable 8-bit grayscale raster snapshot. Image must not be
// modified once the frame has been handed to anyone else; the animation
// shares one image between every frame of the same tick.
type Frame struct {
	Seq   uint32      // monotonically increasing per sender
	Index int         // animation tick, always in [0, period)
	Image *image.Gray // full frame, origin at (0,0)

	// GroundTruth is only set on the side that generates the animation.
	GroundTruth *Coordinate
}

// Source is a consumable, non-restartable sequence of decoded frames.
type Source interface {
	// Recv blocks until the next frame is available or ctx is done.
	Recv(ctx context.Context) (Frame, error)
}

// Sink accepts frames for transmission.
type Sink interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// Track is a bidirectional frame stream; each role only uses one direction.
type Track interface {
	Source
	Sink
}
