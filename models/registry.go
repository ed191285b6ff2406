// Package models - Label tables and the registry for detection models.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/lingolens/models/model"
	"github.com/nvr-ai/lingolens/models/yolov5"
)

// ErrUnsupportedModel is returned for a model name with no registered implementation.
var ErrUnsupportedModel = errors.New("unsupported model")

// NewModel creates a new detection model instance based on the specified model name.
//
// This factory function is the single entry point for model creation, routing
// requests to the model-specific constructors. An empty name selects YOLOv5.
//
// Arguments:
//   - cfg: Configuration parameters specifying the model name, layout and thresholds.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: An error if the model name is unsupported or validation fails.
//
// Example:
//
// ```go
//
//	m, err := NewModel(model.Config{
//	    Name:                model.ModelNameYOLOv5,
//	    ConfidenceThreshold: 0.4,
//	    NMS:                 postprocess.DefaultNMSConfig(),
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(cfg model.Config) (model.Model, error) {
	switch cfg.Name {
	case model.ModelNameYOLOv5, "":
		m, err := yolov5.NewModel(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedModel, "%q", cfg.Name)
	}
}

// LabelsFor returns the label table used to name a model's class indices.
func LabelsFor(m model.Model) (*LabelTable, error) {
	family := m.Config().Family
	if family == "" {
		family = model.ModelFamilyYOLO
	}
	return DefaultClassManager().Table(family)
}
