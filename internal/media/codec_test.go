package media

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	img.Pix[10*64+20] = 255
	img.Pix[47*64+63] = 17

	truth := Coordinate{X: 20, Y: 10}
	encoded, err := Encode(Frame{Seq: 1234, Index: 59, Image: img, GroundTruth: &truth})
	require.NoError(t, err)
	assert.Less(t, len(encoded), len(img.Pix), "blank frames should compress")

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), decoded.Seq)
	assert.Equal(t, 59, decoded.Index)
	assert.Equal(t, img.Bounds(), decoded.Image.Bounds())
	assert.Equal(t, img.Pix, decoded.Image.Pix)
	assert.Nil(t, decoded.GroundTruth, "ground truth never crosses the wire")
}

func TestEncodeSubImage(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 10, 10))
	full.Pix[3*10+4] = 200
	sub := full.SubImage(image.Rect(2, 2, 8, 8)).(*image.Gray)

	encoded, err := Encode(Frame{Image: sub})
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), decoded.Image.Bounds())
	assert.Equal(t, uint8(200), decoded.Image.GrayAt(2, 1).Y)
}

func TestEncodeRejectsMissingImage(t *testing.T) {
	_, err := Encode(Frame{Seq: 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(Frame{Image: image.NewGray(image.Rect(0, 0, 8, 8))})
	require.NoError(t, err)

	wrongSize := append([]byte(nil), valid...)
	wrongSize[7] = 9 // claim 9 columns

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short header", make([]byte, HeaderSize-1)},
		{"zero dimensions", make([]byte, HeaderSize)},
		{"garbage payload", append(append([]byte(nil), valid[:HeaderSize]...), 1, 2, 3, 4)},
		{"dimension mismatch", wrongSize},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	// A 1x1 header in front of a payload inflating past any legal frame.
	huge := make([]byte, maxDimension*maxDimension+1)
	data := make([]byte, HeaderSize)
	data[7], data[9] = 1, 1
	data = encoder.EncodeAll(huge, data)

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestCoordinateString(t *testing.T) {
	assert.Equal(t, "0,0", Coordinate{}.String())
	assert.Equal(t, "51,52", Coordinate{X: 51, Y: 52}.String())
}
