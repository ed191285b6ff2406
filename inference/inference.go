// Package inference - Inference engine interface and configuration.
package inference

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/inference/providers"
	"github.com/nvr-ai/lingolens/models/model/preprocess"
)

// Inferencer runs a detection model on one image and returns its raw output.
//
// Implementations serialize calls into the underlying runtime themselves, so a
// single Inferencer may be shared between goroutines.
type Inferencer interface {
	// Infer returns the raw output tensor of shape (1, anchors, 5+classes).
	Infer(ctx context.Context, img image.Image) (*tensor.Dense, error)
	// Close releases the runtime resources.
	Close() error
}

// EngineType is the type of the engine.
type EngineType string

const (
	// EngineONNX is the ONNX engine that uses the onnxruntime library.
	EngineONNX EngineType = "onnx"
	// EngineOpenCV is the OpenCV DNN engine that uses gocv.
	EngineOpenCV EngineType = "opencv"
)

// Engines is a list of all supported engines.
var Engines = []EngineType{EngineONNX, EngineOpenCV}

// ErrUnsupportedEngine is returned for an unknown engine name.
var ErrUnsupportedEngine = errors.New("unsupported inference engine")

// Config describes how to load and run a model.
type Config struct {
	// Engine selects the runtime.
	Engine EngineType `json:"engine" yaml:"engine"`
	// ModelPath is the location of the .onnx model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// InputSize is the square input resolution in pixels.
	InputSize int `json:"input_size" yaml:"input_size"`
	// ChannelOrder is "chw" or "hwc".
	ChannelOrder string `json:"channel_order" yaml:"channel_order"`
	// InputName is the name of the model's input tensor.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the name of the model's output tensor.
	OutputName string `json:"output_name" yaml:"output_name"`
	// BoxScale divides the box columns of the raw output so that boxes come out
	// normalized. Use the input size for exports that emit pixel coordinates and 1
	// for exports that are already normalized.
	BoxScale float32 `json:"box_scale" yaml:"box_scale"`
	// SharedLibraryPath overrides the onnxruntime library location.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// Provider selects the ONNX Runtime execution provider.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DefaultConfig returns the configuration of the bundled 320x320 YOLOv5 export.
func DefaultConfig() Config {
	return Config{
		Engine:       EngineONNX,
		ModelPath:    "models/yolov5s-320.onnx",
		InputSize:    320,
		ChannelOrder: "chw",
		InputName:    "images",
		OutputName:   "output0",
		BoxScale:     320,
		Provider:     providers.Config{Backend: providers.CPUProviderBackend},
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineONNX, EngineOpenCV:
	default:
		return errors.Wrapf(ErrUnsupportedEngine, "%q", c.Engine)
	}
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	if _, err := preprocess.ParseChannelOrder(c.ChannelOrder); err != nil {
		return err
	}
	if c.BoxScale < 0 {
		return errors.Errorf("box_scale must not be negative, got %v", c.BoxScale)
	}
	return c.Provider.Validate()
}

// Preprocessor returns the YOLOv5 preprocessor for this configuration.
func (c Config) Preprocessor() (*preprocess.Preprocessor, error) {
	order, err := preprocess.ParseChannelOrder(c.ChannelOrder)
	if err != nil {
		return nil, err
	}
	return preprocess.NewPreprocessor(preprocess.GetYOLOv5Config(c.InputSize, order)), nil
}

// InputShape returns the model input shape including the batch dimension.
func (c Config) InputShape() []int64 {
	s := int64(c.InputSize)
	if order, _ := preprocess.ParseChannelOrder(c.ChannelOrder); order == preprocess.ChannelOrderHWC {
		return []int64{1, s, s, 3}
	}
	return []int64{1, 3, s, s}
}

// NormalizeBoxes divides the cx, cy, w and h columns of every row in data by scale.
// A scale of 0 or 1 leaves data untouched.
//
// Arguments:
//   - data: Row-major output values.
//   - rowLength: The number of values per row, 5 plus the number of classes.
//   - scale: The coordinate unit of the boxes.
func NormalizeBoxes(data []float32, rowLength int, scale float32) {
	if scale == 0 || scale == 1 || rowLength < 4 {
		return
	}
	inv := 1 / scale
	for i := 0; i+4 <= len(data); i += rowLength {
		data[i] *= inv
		data[i+1] *= inv
		data[i+2] *= inv
		data[i+3] *= inv
	}
}
