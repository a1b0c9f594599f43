// Package detect locates the tracked circle in a decoded frame.
//
// Two strategies exist. Scan is canonical and is the only one used for
// coordinate reports. Extremal is a cheaper diagnostic whose X and Y need not
// belong to the same physical point; never score reports with it.
package detect

import (
	"image"

	"github.com/1ureka/circletrack/internal/media"
)

// Detection parameters.
const (
	Threshold    = 50 // minimum intensity of a qualifying pixel (inclusive)
	ScanTrim     = 10 // border ignored by Scan on every edge
	ExtremalTrim = 25 // border ignored by Extremal on every edge
)

// Detector returns the estimated coordinate of the tracked object, in
// full-frame pixel space.
type Detector interface {
	Detect(img *image.Gray) media.Coordinate
}

// Scan returns the first pixel in raster order (rows top to bottom, columns
// left to right) whose intensity is at least Threshold, ignoring a Trim-pixel
// border. It returns (0,0) if nothing qualifies.
type Scan struct {
	Trim      int
	Threshold uint8
}

// NewScan returns the canonical Scan detector.
func NewScan() Scan {
	return Scan{Trim: ScanTrim, Threshold: Threshold}
}

func (s Scan) Detect(img *image.Gray) media.Coordinate {
	if img == nil {
		return media.Coordinate{}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	for y := s.Trim; y < h-s.Trim; y++ {
		row := img.Pix[y*img.Stride:]
		for x := s.Trim; x < w-s.Trim; x++ {
			if row[x] >= s.Threshold {
				return media.Coordinate{X: x, Y: y}
			}
		}
	}
	return media.Coordinate{}
}

// Extremal independently picks the column with the largest intensity sum (X)
// and the row with the largest intensity sum (Y) inside a Trim-pixel border.
// Ties go to the smaller index, so an empty frame yields (Trim, Trim).
type Extremal struct {
	Trim int
}

// NewExtremal returns the diagnostic Extremal detector.
func NewExtremal() Extremal {
	return Extremal{Trim: ExtremalTrim}
}

func (e Extremal) Detect(img *image.Gray) media.Coordinate {
	if img == nil {
		return media.Coordinate{}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 2*e.Trim || h <= 2*e.Trim {
		return media.Coordinate{}
	}

	colSums := make([]int, w)
	best := media.Coordinate{X: e.Trim, Y: e.Trim}
	bestRow := -1

	for y := e.Trim; y < h-e.Trim; y++ {
		row := img.Pix[y*img.Stride:]
		sum := 0
		for x := e.Trim; x < w-e.Trim; x++ {
			v := int(row[x])
			sum += v
			colSums[x] += v
		}
		if sum > bestRow {
			bestRow = sum
			best.Y = y
		}
	}

	bestCol := -1
	for x := e.Trim; x < w-e.Trim; x++ {
		if colSums[x] > bestCol {
			bestCol = colSums[x]
			best.X = x
		}
	}
	return best
}
