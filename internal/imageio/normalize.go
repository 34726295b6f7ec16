package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError is returned when bytes cannot be parsed as an image.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("image decode error (%s): %v", e.Format, e.Err)
	}
	return fmt.Sprintf("image decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrEmptyInput is wrapped in a DecodeError when no bytes were supplied.
var ErrEmptyInput = errors.New("empty input")

// ErrTooManyPixels is wrapped in a DecodeError when the header declares more
// than MaxPixels pixels.
var ErrTooManyPixels = errors.New("image dimensions too large")

// MaxPixels caps width*height before any pixel data is decoded.
const MaxPixels = 40_000_000

// NormalizedImage is an orientation-corrected RGB raster. Pix holds 3 bytes per
// pixel in row-major order.
type NormalizedImage struct {
	Width  int
	Height int
	Pix    []uint8
	Format string
}

// ColorModel implements image.Image.
func (m *NormalizedImage) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (m *NormalizedImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// At implements image.Image. Every pixel is opaque.
func (m *NormalizedImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := (y*m.Width + x) * 3
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// RGBAt returns the raw channel values at (x, y).
func (m *NormalizedImage) RGBAt(x, y int) (uint8, uint8, uint8) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Normalize decodes data, applies any EXIF orientation and converts the result
// to three-channel RGB. Alpha is dropped, not composited. Images whose header
// declares more than MaxPixels pixels are rejected before decoding.
func Normalize(data []byte) (*NormalizedImage, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyInput}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &DecodeError{
			Format: format,
			Err:    fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	out := toRGB(img)
	out.Format = format
	return out, nil
}

// toRGB flattens any image into packed RGB. imaging.Clone yields
// non-premultiplied NRGBA, so dropping A keeps the stored colour untouched.
func toRGB(img image.Image) *NormalizedImage {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, 3*w*h)
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+4*w]
		for x := range w {
			o := (y*w + x) * 3
			pix[o] = row[4*x]
			pix[o+1] = row[4*x+1]
			pix[o+2] = row[4*x+2]
		}
	}
	return &NormalizedImage{Width: w, Height: h, Pix: pix}
}
