package yolov5

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/models/model"
	"github.com/nvr-ai/lingolens/models/postprocess"
)

// DefaultInputSize is the square input resolution of the bundled model.
const DefaultInputSize = 320

// YOLOv5 is the instance of the YOLOv5 model.
type YOLOv5 struct {
	config model.Config
	layout Layout
}

// Config returns the configuration of the YOLOv5 model.
func (m *YOLOv5) Config() model.Config {
	return m.config
}

// Layout returns the expected output layout.
func (m *YOLOv5) Layout() Layout {
	return m.layout
}

// NewModel creates a new YOLOv5 model.
//
// Zero values in the configuration are replaced with the defaults of the bundled
// 320x320 COCO model.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - *YOLOv5: The model.
//   - error: An error if the layout or the thresholds are invalid.
func NewModel(cfg model.Config) (*YOLOv5, error) {
	cfg.Name = model.ModelNameYOLOv5
	if cfg.Family == "" {
		cfg.Family = model.ModelFamilyYOLO
	}
	if cfg.InputSize == 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.Anchors == 0 {
		cfg.Anchors = DefaultAnchors
	}
	if cfg.Classes == 0 {
		cfg.Classes = DefaultClasses
	}

	layout := Layout{Anchors: cfg.Anchors, Classes: cfg.Classes}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.InputSize < 0 {
		return nil, errors.Errorf("invalid input size: %d", cfg.InputSize)
	}
	if err := postprocess.ValidateThreshold("confidence_threshold", cfg.ConfidenceThreshold); err != nil {
		return nil, err
	}
	if err := cfg.NMS.Validate(); err != nil {
		return nil, err
	}

	return &YOLOv5{config: cfg, layout: layout}, nil
}

// PostProcess postprocesses the output of the YOLOv5 model.
//
// Arguments:
//   - output: The raw output tensor of the YOLOv5 model.
//   - confidenceThreshold: The objectness cutoff.
//   - nms: The suppression configuration. nil selects the model's configured NMS.
//
// Returns:
//   - A slice of detections in descending confidence order.
//   - error: ErrShapeMismatch when the tensor does not match the layout.
func (m *YOLOv5) PostProcess(
	output *tensor.Dense,
	confidenceThreshold float32,
	nms *postprocess.NMSConfig,
) ([]postprocess.Detection, error) {
	candidates, err := m.Decode(output, confidenceThreshold)
	if err != nil {
		return nil, err
	}
	if nms == nil {
		nms = &m.config.NMS
	}
	return postprocess.ApplyNMS(candidates, nms), nil
}

// Decode returns the candidates of output whose objectness exceeds confidenceThreshold.
func (m *YOLOv5) Decode(output *tensor.Dense, confidenceThreshold float32) ([]postprocess.Detection, error) {
	return Decode(output, m.layout, confidenceThreshold)
}
