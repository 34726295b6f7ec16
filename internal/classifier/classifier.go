package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/vislabel/internal/mempool"
	"github.com/MeKo-Tech/vislabel/internal/onnx"
	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// DefaultImageSize is used when neither the model nor its metadata fix the
// input resolution.
const DefaultImageSize = 224

// Config selects the model and how it runs.
type Config struct {
	ModelPath           string
	MetadataPath        string
	LabelsPath          string
	LibraryPath         string
	NumThreads          int
	OutputIsProbability bool
	GPU                 onnx.GPUConfig
	Warmup              bool
}

// Classifier runs an ONNX image classification model with one image input
// and one score output.
type Classifier struct {
	mu       sync.RWMutex
	session  *onnxrt.DynamicAdvancedSession
	meta     Metadata
	norm     onnx.Normalization
	inH, inW int
	softmax  bool
}

// New loads labels, initialises the runtime and opens a session for
// cfg.ModelPath.
func New(cfg Config) (*Classifier, error) {
	if err := validateModelPath(cfg.ModelPath); err != nil {
		return nil, &ModelError{Op: "open", Path: cfg.ModelPath, Err: err}
	}

	meta, err := ResolveMetadata(cfg.ModelPath, cfg.MetadataPath, cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	if err := onnx.Initialize(cfg.LibraryPath, cfg.GPU.Enabled); err != nil {
		return nil, &ModelError{Op: "init runtime", Err: err}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, &ModelError{Op: "inspect", Path: cfg.ModelPath, Err: err}
	}
	in, out, err := validateModelIO(inputs, outputs)
	if err != nil {
		return nil, &ModelError{Op: "inspect", Path: cfg.ModelPath, Err: err}
	}

	opts, err := onnx.NewSessionOptions(cfg.NumThreads, cfg.GPU)
	if err != nil {
		return nil, &ModelError{Op: "configure", Path: cfg.ModelPath, Err: err}
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("destroy session options", "error", err)
		}
	}()

	sess, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, &ModelError{Op: "session", Path: cfg.ModelPath, Err: err}
	}

	c := &Classifier{
		session: sess,
		meta:    meta,
		norm:    meta.Normalization(),
		softmax: !cfg.OutputIsProbability && !meta.OutputIsProbability,
	}
	c.inH, c.inW = inputSize(in.Dimensions, meta)

	slog.Info("classifier loaded",
		"model", cfg.ModelPath,
		"labels", len(meta.Classes),
		"input", fmt.Sprintf("%dx%d", c.inW, c.inH),
		"softmax", c.softmax)

	if cfg.Warmup {
		if err := c.warmup(); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func validateModelPath(path string) error {
	if path == "" {
		return errors.New("empty model path")
	}
	_, err := os.Stat(path)
	return err
}

func validateModelIO(inputs, outputs []onnxrt.InputOutputInfo) (onnxrt.InputOutputInfo, onnxrt.InputOutputInfo, error) {
	if len(inputs) != 1 || len(outputs) != 1 {
		return onnxrt.InputOutputInfo{}, onnxrt.InputOutputInfo{},
			fmt.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return onnxrt.InputOutputInfo{}, onnxrt.InputOutputInfo{},
			fmt.Errorf("expected 4D NCHW input, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

// inputSize takes H and W from the model when they are static, else from the
// metadata, else DefaultImageSize.
func inputSize(dims onnxrt.Shape, meta Metadata) (int, int) {
	h, w := 0, 0
	if len(dims) == 4 {
		h, w = int(dims[2]), int(dims[3])
	}
	if (h <= 0 || w <= 0) && len(meta.InputShape) == 4 {
		h, w = int(meta.InputShape[2]), int(meta.InputShape[3])
	}
	if h <= 0 || w <= 0 {
		size := meta.ImageSize
		if size <= 0 {
			size = DefaultImageSize
		}
		h, w = size, size
	}
	return h, w
}

// Labels returns the class labels in model output order.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.meta.Classes...)
}

// Metadata returns the loaded model metadata.
func (c *Classifier) Metadata() Metadata { return c.meta }

// Predict classifies img. The context is checked before inference; a running
// inference is not interrupted.
func (c *Classifier) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	if img == nil {
		return Prediction{}, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Prediction{}, ErrClosed
	}

	scores, err := c.run(img)
	if err != nil {
		return Prediction{}, err
	}
	if len(scores) != len(c.meta.Classes) {
		return Prediction{}, &ModelError{Op: "predict",
			Err: fmt.Errorf("%w: %d scores, %d labels", ErrOutputMismatch, len(scores), len(c.meta.Classes))}
	}

	var probs []float64
	if c.softmax {
		probs = Softmax(scores)
	} else {
		probs = toFloat64(scores)
	}
	return NewPrediction(c.meta.Classes, probs)
}

func (c *Classifier) run(img image.Image) ([]float32, error) {
	resized := imaging.Resize(img, c.inW, c.inH, imaging.Lanczos)

	buf := mempool.Get(3 * c.inW * c.inH)
	defer mempool.Put(buf)

	data, err := onnx.PackNCHW(resized, c.norm, buf)
	if err != nil {
		return nil, &ModelError{Op: "preprocess", Err: err}
	}
	t, err := onnx.NewImageTensor(data, 3, c.inH, c.inW)
	if err != nil {
		return nil, &ModelError{Op: "preprocess", Err: err}
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, &ModelError{Op: "tensor", Err: err}
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := c.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, &ModelError{Op: "run", Err: err}
	}
	defer func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				slog.Warn("destroy output tensor", "error", err)
			}
		}
	}()

	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, &ModelError{Op: "run", Err: fmt.Errorf("unexpected output type %T", outputs[0])}
	}
	return append([]float32(nil), out.GetData()...), nil
}

func (c *Classifier) warmup() error {
	blank := image.NewNRGBA(image.Rect(0, 0, c.inW, c.inH))
	if _, err := c.Predict(context.Background(), blank); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	return nil
}

// Close releases the session. Predict fails with ErrClosed afterwards.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	if err != nil {
		return &ModelError{Op: "close", Err: err}
	}
	return nil
}

var _ Predictor = (*Classifier)(nil)
