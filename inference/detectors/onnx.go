// Package detectors - model runtimes implementing inference.Inferencer.
package detectors

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/inference/providers"
	"github.com/nvr-ai/lingolens/models/model/preprocess"
	"github.com/nvr-ai/lingolens/models/yolov5"
)

// ortMu guards the process-wide onnxruntime environment.
var ortMu sync.Mutex

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// ONNXSession runs a YOLOv5 model with onnxruntime.
type ONNXSession struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	input        *ort.Tensor[float32]
	output       *ort.Tensor[float32]
	preprocessor *preprocess.Preprocessor
	layout       yolov5.Layout
	boxScale     float32
}

// NewONNXSession creates a new onnxruntime session for the configured model.
//
// Arguments:
//   - cfg: The inference configuration.
//   - layout: The output layout the model produces.
//
// Returns:
//   - *ONNXSession: The session.
//   - error: An error if the library, the model or the provider could not be loaded.
func NewONNXSession(cfg inference.Config, layout yolov5.Layout) (*ONNXSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}

	preprocessor, err := cfg.Preprocessor()
	if err != nil {
		return nil, err
	}

	if err := initEnvironment(providers.GetSharedLibPath(cfg.SharedLibraryPath)); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape()...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	outputShape := ort.NewShape(1, int64(layout.Anchors), int64(layout.RowLength()))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	zap.L().Info("onnx session ready",
		zap.String("model", cfg.ModelPath),
		zap.String("provider", string(cfg.Provider.Backend)),
		zap.Int64s("input_shape", cfg.InputShape()),
		zap.Int("anchors", layout.Anchors),
		zap.Int("classes", layout.Classes),
	)

	return &ONNXSession{
		session:      session,
		input:        inputTensor,
		output:       outputTensor,
		preprocessor: preprocessor,
		layout:       layout,
		boxScale:     cfg.BoxScale,
	}, nil
}

// Infer preprocesses img into the input tensor, runs the session and returns a copy
// of the output.
func (s *ONNXSession) Infer(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	if _, err := s.preprocessor.PreprocessInto(img, s.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	out := s.output.GetData()
	backing := make([]float32, len(out))
	copy(backing, out)
	inference.NormalizeBoxes(backing, s.layout.RowLength(), s.boxScale)

	return tensor.New(
		tensor.WithShape(1, s.layout.Anchors, s.layout.RowLength()),
		tensor.WithBacking(backing),
	), nil
}

// Close releases the resources associated with the session.
func (s *ONNXSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}
