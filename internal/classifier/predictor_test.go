package classifier

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	onnxrt "github.com/yalue/onnxruntime_go"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)

	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Less(t, probs[0], probs[1])
	assert.Less(t, probs[1], probs[2])
	assert.InDelta(t, 0.6652, probs[2], 1e-4)
}

func TestSoftmax_LargeLogitsStayFinite(t *testing.T) {
	probs := Softmax([]float32{1000, 1000})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.InDelta(t, 0.5, p, 1e-9)
	}
	assert.Nil(t, Softmax(nil))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, -1, Argmax(nil))
}

func TestNewPrediction(t *testing.T) {
	p, err := NewPrediction([]string{"eye", "foot", "hand"}, []float64{0.2, 0.7, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "foot", p.Label)
	assert.Equal(t, 1, p.Index)
	assert.InDelta(t, 0.7, p.Confidence(), 1e-12)

	_, err = NewPrediction(nil, nil)
	assert.ErrorIs(t, err, ErrNoLabels)

	_, err = NewPrediction([]string{"a"}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrOutputMismatch)
}

func TestNewPrediction_RejectsNonFinite(t *testing.T) {
	labels := []string{"eye", "foot", "hand"}
	tests := []struct {
		name  string
		probs []float64
	}{
		{"nan", []float64{0.2, math.NaN(), 0.1}},
		{"positive infinity", []float64{math.Inf(1), 0, 0}},
		{"negative infinity", []float64{0.5, 0.5, math.Inf(-1)}},
		{"softmax of infinite logit", Softmax([]float32{float32(math.Inf(1)), 1, 2})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPrediction(labels, tt.probs)
			assert.ErrorIs(t, err, ErrNonFinite)
		})
	}
}

func TestPrediction_ConfidenceOutOfRange(t *testing.T) {
	assert.Zero(t, Prediction{Index: 3, Probabilities: []float64{1}}.Confidence())
	assert.Zero(t, Prediction{Index: -1}.Confidence())
}

func TestModelError(t *testing.T) {
	cause := errors.New("boom")
	err := &ModelError{Op: "open", Path: "m.onnx", Err: cause}
	assert.Equal(t, "model open m.onnx: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "model run: boom", (&ModelError{Op: "run", Err: cause}).Error())
}

func TestNew_MissingModel(t *testing.T) {
	_, err := New(Config{ModelPath: ""})
	var modelErr *ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "open", modelErr.Op)

	_, err = New(Config{ModelPath: "/does/not/exist.onnx"})
	require.True(t, errors.As(err, &modelErr))
}

func TestClassifier_PredictAfterClose(t *testing.T) {
	c := &Classifier{meta: Metadata{Classes: []string{"a"}}, inH: 4, inW: 4}
	require.NoError(t, c.Close())

	_, err := c.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.Predict(context.Background(), nil)
	assert.Error(t, err)
}

func TestClassifier_PredictCancelled(t *testing.T) {
	c := &Classifier{meta: Metadata{Classes: []string{"a"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Predict(ctx, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifier_LabelsIsCopy(t *testing.T) {
	c := &Classifier{meta: Metadata{Classes: []string{"a", "b"}}}
	labels := c.Labels()
	labels[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, c.Labels())
}

func TestInputSize(t *testing.T) {
	tests := []struct {
		name  string
		dims  onnxrt.Shape
		meta  Metadata
		wantH int
		wantW int
	}{
		{"static model dims", onnxrt.Shape{1, 3, 192, 256}, Metadata{ImageSize: 64}, 192, 256},
		{"dynamic dims use metadata shape", onnxrt.Shape{-1, 3, -1, -1}, Metadata{InputShape: []int64{1, 3, 128, 128}}, 128, 128},
		{"dynamic dims use image size", onnxrt.Shape{-1, 3, -1, -1}, Metadata{ImageSize: 300}, 300, 300},
		{"default", onnxrt.Shape{-1, 3, -1, -1}, Metadata{}, DefaultImageSize, DefaultImageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, w := inputSize(tt.dims, tt.meta)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantW, w)
		})
	}
}

func TestValidateModelIO(t *testing.T) {
	in := onnxrt.InputOutputInfo{Name: "input", Dimensions: onnxrt.Shape{1, 3, 224, 224}}
	out := onnxrt.InputOutputInfo{Name: "output", Dimensions: onnxrt.Shape{1, 3}}

	gotIn, gotOut, err := validateModelIO([]onnxrt.InputOutputInfo{in}, []onnxrt.InputOutputInfo{out})
	require.NoError(t, err)
	assert.Equal(t, "input", gotIn.Name)
	assert.Equal(t, "output", gotOut.Name)

	_, _, err = validateModelIO(nil, []onnxrt.InputOutputInfo{out})
	assert.Error(t, err)

	flat := onnxrt.InputOutputInfo{Name: "input", Dimensions: onnxrt.Shape{1, 150528}}
	_, _, err = validateModelIO([]onnxrt.InputOutputInfo{flat}, []onnxrt.InputOutputInfo{out})
	assert.Error(t, err)
}
