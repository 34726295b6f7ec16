package onnx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	tests := []struct {
		name    string
		data    []float32
		wantErr bool
	}{
		{"nil data", nil, true},
		{"too short", make([]float32, 10), true},
		{"too long", make([]float32, 100), true},
		{"exact", make([]float32, 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ten, err := NewImageTensor(tt.data, 3, 4, 5)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)
			assert.NoError(t, VerifyImageTensor(ten))
		})
	}
}

func TestValidateNCHW(t *testing.T) {
	assert.NoError(t, ValidateNCHW([]int64{1, 3, 224, 224}))
	assert.Error(t, ValidateNCHW([]int64{3, 224, 224}))
	assert.Error(t, ValidateNCHW([]int64{1, 0, 224, 224}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, -1, 224}))
}

func TestVerifyImageTensor_LengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 5), Shape: []int64{1, 3, 2, 2}})
	assert.Error(t, err)
}

func TestPackNCHW_PlanesAndNormalization(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 102, A: 255})

	got, err := PackNCHW(img, Identity, nil)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1, 0.2, 0.4}, got, 1e-6)

	n := Normalization{Mean: [3]float32{0.5, 0.5, 0.5}, Std: [3]float32{0.5, 0.5, 0.5}}
	got, err = PackNCHW(img, n, make([]float32, 6))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, -1, -1, 1, -0.6, -0.2}, got, 1e-6)
}

func TestPackNCHW_ZeroNormalizationIsIdentity(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	got, err := PackNCHW(img, Normalization{}, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1, 1}, got, 1e-6)
}

func TestPackNCHW_AcceptsAnyImage(t *testing.T) {
	gray := image.NewGray(image.Rect(2, 2, 4, 3))
	gray.SetGray(2, 2, color.Gray{Y: 255})

	got, err := PackNCHW(gray, Identity, nil)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.InDelta(t, 1.0, got[0], 1e-6)
	assert.InDelta(t, 0.0, got[1], 1e-6)
}

func TestPackNCHW_Errors(t *testing.T) {
	_, err := PackNCHW(nil, Identity, nil)
	assert.Error(t, err)

	_, err = PackNCHW(image.NewNRGBA(image.Rect(0, 0, 0, 0)), Identity, nil)
	assert.Error(t, err)

	_, err = PackNCHW(image.NewNRGBA(image.Rect(0, 0, 2, 2)), Identity, make([]float32, 3))
	assert.Error(t, err)
}
