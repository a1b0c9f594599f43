package media

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/klauspost/compress/zstd"
)

// HeaderSize is the fixed frame header size: Seq(4) + Index(2) + Width(2) + Height(2).
const HeaderSize = 10

// maxDimension bounds decoded frames so a corrupt header cannot force a huge allocation.
const maxDimension = 4096

// EncodeAll and DecodeAll are safe for concurrent use, so one instance of each
// serves every channel in the process.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxDimension*maxDimension),
	)
)

// Encode serializes a Frame for video channel transmission: the header
// followed by the zstd-compressed pixel rows. GroundTruth is never encoded.
func Encode(f Frame) ([]byte, error) {
	if f.Image == nil {
		return nil, fmt.Errorf("%w: frame %d has no image", ErrInvalidArgument, f.Seq)
	}
	b := f.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxDimension || h > maxDimension || f.Index < 0 || f.Index > 0xFFFF {
		return nil, fmt.Errorf("%w: frame %d out of range (%dx%d, index %d)", ErrInvalidArgument, f.Seq, w, h, f.Index)
	}

	header := make([]byte, HeaderSize, HeaderSize+w*h/8)
	binary.BigEndian.PutUint32(header[0:4], f.Seq)
	binary.BigEndian.PutUint16(header[4:6], uint16(f.Index))
	binary.BigEndian.PutUint16(header[6:8], uint16(w))
	binary.BigEndian.PutUint16(header[8:10], uint16(h))

	return encoder.EncodeAll(packedPixels(f.Image), header), nil
}

// Decode deserializes a byte slice into a Frame.
func Decode(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes (need at least %d)", ErrMalformedFrame, len(data), HeaderSize)
	}
	f := Frame{
		Seq:   binary.BigEndian.Uint32(data[0:4]),
		Index: int(binary.BigEndian.Uint16(data[4:6])),
	}
	w := int(binary.BigEndian.Uint16(data[6:8]))
	h := int(binary.BigEndian.Uint16(data[8:10]))
	if w == 0 || h == 0 || w > maxDimension || h > maxDimension {
		return Frame{}, fmt.Errorf("%w: bad dimensions %dx%d", ErrMalformedFrame, w, h)
	}

	pix, err := decoder.DecodeAll(data[HeaderSize:], make([]byte, 0, w*h))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(pix) != w*h {
		return Frame{}, fmt.Errorf("%w: %d pixels for %dx%d", ErrMalformedFrame, len(pix), w, h)
	}

	f.Image = &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
	return f, nil
}

// packedPixels returns the image rows without stride padding.
func packedPixels(img *image.Gray) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == w {
		return img.Pix[:w*h]
	}
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		out = append(out, row[:w]...)
	}
	return out
}
