// Package onnx holds the ONNX Runtime bootstrap and the tensor helpers used
// to feed images to a classifier.
package onnx

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Tensor is a float32 tensor in row-major order, NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Normalization is the per-channel (x/255 - mean) / std transform applied
// while packing pixels.
type Normalization struct {
	Mean [3]float32 `json:"mean"`
	Std  [3]float32 `json:"std"`
}

// ImageNet is the usual normalisation for ImageNet-pretrained backbones.
var ImageNet = Normalization{
	Mean: [3]float32{0.485, 0.456, 0.406},
	Std:  [3]float32{0.229, 0.224, 0.225},
}

// Identity only rescales to 0..1.
var Identity = Normalization{Std: [3]float32{1, 1, 1}}

// IsZero reports whether no transform was configured.
func (n Normalization) IsZero() bool { return n == Normalization{} }

// NewImageTensor wraps CHW data as a [1, C, H, W] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks the data length against the shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	want := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}

// PackNCHW writes img into dst as three planes R, G, B with n applied.
// dst must hold 3*W*H values; a nil dst is allocated.
func PackNCHW(img image.Image, n Normalization, dst []float32) ([]float32, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	src, ok := img.(*image.NRGBA)
	if !ok || src.Rect.Min != (image.Point{}) {
		src = imaging.Clone(img)
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", w, h)
	}
	plane := w * h
	if dst == nil {
		dst = make([]float32, 3*plane)
	}
	if len(dst) != 3*plane {
		return nil, fmt.Errorf("buffer length %d, want %d", len(dst), 3*plane)
	}
	if n.IsZero() {
		n = Identity
	}
	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			i := y*w + x
			for c := range 3 {
				v := float32(row[4*x+c]) / 255
				dst[c*plane+i] = (v - n.Mean[c]) / n.Std[c]
			}
		}
	}
	return dst, nil
}
