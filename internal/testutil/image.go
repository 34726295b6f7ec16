package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// Red and Blue are the two halves used by SplitImage in orientation tests.
	Red  = color.NRGBA{R: 255, A: 255}
	Blue = color.NRGBA{B: 255, A: 255}
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// SplitImage returns a w x h image whose left half is left and right half is right.
func SplitImage(w, h int, left, right color.Color) *image.NRGBA {
	img := SolidImage(w, h, right)
	draw.Draw(img, image.Rect(0, 0, w/2, h), &image.Uniform{left}, image.Point{}, draw.Src)
	return img
}

// EncodeJPEG encodes img as a high quality JPEG.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}), "Failed to encode JPEG")
	return buf.Bytes()
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG")
	return buf.Bytes()
}

// WithEXIFOrientation inserts an APP1 segment carrying a single big-endian
// orientation tag (0x0112) right after the JPEG SOI marker.
func WithEXIFOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(jpg), 2)
	require.Equal(t, []byte{0xff, 0xd8}, jpg[:2], "not a JPEG stream")

	var payload bytes.Buffer
	payload.WriteString("Exif\x00\x00")
	payload.WriteString("MM")
	writeBE(&payload, uint16(0x002a), uint32(8))
	// One IFD entry: tag, type SHORT, count 1, the value.
	writeBE(&payload, uint16(1))
	writeBE(&payload, uint16(0x0112), uint16(3), uint32(1), orientation)
	// Value padding, then a zero next-IFD offset.
	writeBE(&payload, uint16(0), uint32(0))

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xff, 0xe1})
	writeBE(&out, uint16(payload.Len()+2))
	out.Write(payload.Bytes())
	out.Write(jpg[2:])
	return out.Bytes()
}

func writeBE(buf *bytes.Buffer, values ...any) {
	for _, v := range values {
		_ = binary.Write(buf, binary.BigEndian, v)
	}
}

// Near reports whether the RGB triple is within tol of want on every channel.
func Near(r, g, b uint8, want color.NRGBA, tol int) bool {
	return absDiff(r, want.R) <= tol && absDiff(g, want.G) <= tol && absDiff(b, want.B) <= tol
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
