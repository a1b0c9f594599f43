package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1ureka/circletrack/internal/animation"
	"github.com/1ureka/circletrack/internal/media"
)

func blank(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// plus draws a 3x5 plus pattern at rows
// 50..52, columns 50..54, centred on row 51, column 52.
func plus(value uint8) *image.Gray {
	img := blank(100, 100)
	pattern := [3][5]uint8{
		{0, 0, 1, 0, 0},
		{1, 1, 1, 1, 1},
		{0, 0, 1, 0, 0},
	}
	for r := range pattern {
		for c := range pattern[r] {
			img.SetGray(50+c, 50+r, colorGray(pattern[r][c]*value))
		}
	}
	return img
}

func TestScanEmptyFrame(t *testing.T) {
	assert.Equal(t, media.Coordinate{}, NewScan().Detect(blank(100, 100)))
	assert.Equal(t, media.Coordinate{}, NewScan().Detect(nil))
}

func TestScanSinglePixel(t *testing.T) {
	img := blank(100, 100)
	img.SetGray(51, 51, colorGray(200))

	assert.Equal(t, media.Coordinate{X: 51, Y: 51}, NewScan().Detect(img))
}

func TestScanFindsEveryInteriorPixel(t *testing.T) {
	scan := NewScan()
	for _, p := range []media.Coordinate{
		{X: ScanTrim, Y: ScanTrim},
		{X: 89, Y: 10},
		{X: 10, Y: 89},
		{X: 89, Y: 89},
		{X: 37, Y: 64},
	} {
		img := blank(100, 100)
		img.SetGray(p.X, p.Y, colorGray(Threshold))
		assert.Equal(t, p, scan.Detect(img), "pixel at %v", p)
	}
}

func TestScanIgnoresTrimmedBorder(t *testing.T) {
	img := blank(100, 100)
	img.SetGray(5, 50, colorGray(255))
	img.SetGray(50, 95, colorGray(255))
	img.SetGray(9, 9, colorGray(255))

	assert.Equal(t, media.Coordinate{}, NewScan().Detect(img))
}

func TestScanThreshold(t *testing.T) {
	img := blank(100, 100)
	img.SetGray(30, 30, colorGray(Threshold-1))
	img.SetGray(40, 40, colorGray(Threshold))

	assert.Equal(t, media.Coordinate{X: 40, Y: 40}, NewScan().Detect(img))
}

func TestScanRasterOrder(t *testing.T) {
	img := blank(100, 100)
	img.SetGray(70, 20, colorGray(255))
	img.SetGray(20, 20, colorGray(255))
	img.SetGray(15, 21, colorGray(255))

	// Same row: smaller x wins. Earlier row beats a smaller x on a later row.
	assert.Equal(t, media.Coordinate{X: 20, Y: 20}, NewScan().Detect(img))
}

func TestScanPlusPattern(t *testing.T) {
	// A 0/1 pattern never reaches the threshold.
	assert.Equal(t, media.Coordinate{}, NewScan().Detect(plus(1)))

	// A bright plus is found at its top arm: row 50, column 52.
	assert.Equal(t, media.Coordinate{X: 52, Y: 50}, NewScan().Detect(plus(255)))
}

func TestExtremal(t *testing.T) {
	ex := NewExtremal()

	t.Run("empty frame yields the trim corner", func(t *testing.T) {
		assert.Equal(t, media.Coordinate{X: 25, Y: 25}, ex.Detect(blank(100, 100)))
	})

	t.Run("single pixel", func(t *testing.T) {
		img := blank(100, 100)
		img.SetGray(51, 51, colorGray(200))
		assert.Equal(t, media.Coordinate{X: 51, Y: 51}, ex.Detect(img))
	})

	t.Run("plus pattern: row 51, column 52", func(t *testing.T) {
		assert.Equal(t, media.Coordinate{X: 52, Y: 51}, ex.Detect(plus(1)))
	})

	t.Run("frame smaller than the border", func(t *testing.T) {
		assert.Equal(t, media.Coordinate{}, ex.Detect(blank(40, 40)))
	})
}

func TestScanMatchesAnimationGroundTruth(t *testing.T) {
	engine := animation.NewEngine()
	scan := NewScan()

	for k := 0; k < animation.Period; k++ {
		frame := engine.CurrentFrame()
		assert.Equal(t, k, frame.Index)
		assert.Equal(t, *frame.GroundTruth, scan.Detect(frame.Image), "tick %d", k)
		engine.Advance()
	}
}

func TestStrategiesDisagreeOnCircle(t *testing.T) {
	img := animation.Render(media.Coordinate{X: 200, Y: 200})

	scan := NewScan().Detect(img)
	ex := NewExtremal().Detect(img)

	assert.Equal(t, media.Coordinate{X: 200, Y: 200}, scan)
	// Extremal lands on the centre row, not the apex.
	assert.Equal(t, 200, ex.X)
	assert.Equal(t, 200+animation.Radius, ex.Y)
}
