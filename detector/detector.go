// Package detector - Turns raw YOLOv5 output into a deduplicated list of detections.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/models"
	"github.com/nvr-ai/lingolens/models/model"
	"github.com/nvr-ai/lingolens/models/postprocess"
	"github.com/nvr-ai/lingolens/models/yolov5"
	"github.com/nvr-ai/lingolens/monitor"
)

// SuppressionMode selects whether suppression compares boxes across classes.
type SuppressionMode string

const (
	// SuppressionAgnostic compares every pair of boxes regardless of class.
	SuppressionAgnostic SuppressionMode = "agnostic"
	// SuppressionPerClass only compares boxes of the same class.
	SuppressionPerClass SuppressionMode = "per_class"
)

const (
	// DefaultConfidenceThreshold is the objectness cutoff used when none is configured.
	DefaultConfidenceThreshold float32 = 0.4
	// DefaultIoUThreshold is the overlap cutoff used when none is configured.
	DefaultIoUThreshold = postprocess.DefaultIoUThreshold
)

var (
	// ErrInvalidThreshold is returned for thresholds outside [0, 1].
	ErrInvalidThreshold = postprocess.ErrInvalidThreshold
	// ErrNoInferencer is returned by Analyze when no inferencer was supplied.
	ErrNoInferencer = errors.New("detector has no inferencer")
)

// Config holds the post-processing parameters of a Detector.
type Config struct {
	ConfidenceThreshold float32         `json:"confidence_threshold" yaml:"confidence_threshold"`
	IoUThreshold        float32         `json:"iou_threshold" yaml:"iou_threshold"`
	Suppression         SuppressionMode `json:"suppression" yaml:"suppression"`
	Anchors             int             `json:"anchors" yaml:"anchors"`
	Classes             int             `json:"classes" yaml:"classes"`
	// Labels selects the label table that names class indices.
	Labels model.Family `json:"labels" yaml:"labels"`
	// NumWorkers above 1 splits suppression across goroutines.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// DefaultConfig returns the configuration of the bundled 320x320 COCO model.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IoUThreshold:        DefaultIoUThreshold,
		Suppression:         SuppressionAgnostic,
		Anchors:             yolov5.DefaultAnchors,
		Classes:             yolov5.DefaultClasses,
		Labels:              model.ModelFamilyYOLO,
	}
}

// Validate checks the thresholds, the suppression mode, the label table and the layout.
func (c Config) Validate() error {
	if err := postprocess.ValidateThreshold("confidence_threshold", c.ConfidenceThreshold); err != nil {
		return err
	}
	if err := postprocess.ValidateThreshold("iou_threshold", c.IoUThreshold); err != nil {
		return err
	}
	switch c.Suppression {
	case "", SuppressionAgnostic, SuppressionPerClass:
	default:
		return errors.Errorf("unknown suppression mode %q", c.Suppression)
	}
	if c.NumWorkers < 0 {
		return errors.Errorf("num_workers must not be negative, got %d", c.NumWorkers)
	}
	if c.Labels != "" {
		if _, err := models.DefaultClassManager().Table(c.Labels); err != nil {
			return errors.Wrap(err, "labels")
		}
	}
	return yolov5.Layout{Anchors: c.Anchors, Classes: c.Classes}.Validate()
}

// Option configures optional collaborators of a Detector.
type Option func(*Detector)

// WithInferencer sets the model runtime used by Analyze. The Detector does not close it.
func WithInferencer(inferencer inference.Inferencer) Option {
	return func(d *Detector) {
		d.inferencer = inferencer
	}
}

// WithLogger sets the logger. The global zap logger is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records every call into m.
func WithMetrics(m *monitor.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// Detector decodes and suppresses model output.
//
// A Detector keeps no state between calls and Detect is safe for concurrent use.
type Detector struct {
	cfg        Config
	model      model.Model
	inferencer inference.Inferencer
	logger     *zap.Logger
	metrics    *monitor.Metrics
}

// New creates a Detector.
//
// Arguments:
//   - cfg: The post-processing configuration.
//   - opts: Optional collaborators.
//
// Returns:
//   - *Detector: The detector.
//   - error: ErrInvalidThreshold for a threshold outside [0, 1], or a layout error.
//
// Example Usage:
// ```go
//
//	d, err := detector.New(detector.DefaultConfig(), detector.WithInferencer(session))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	detections, err := d.Analyze(ctx, img)
//
// ```
func New(cfg Config, opts ...Option) (*Detector, error) {
	if cfg.Suppression == "" {
		cfg.Suppression = SuppressionAgnostic
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := models.NewModel(model.Config{
		Name:                model.ModelNameYOLOv5,
		Family:              cfg.Labels,
		Anchors:             cfg.Anchors,
		Classes:             cfg.Classes,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		NMS:                 cfg.nms(cfg.IoUThreshold),
	})
	if err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:    cfg,
		model:  m,
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (c Config) nms(iouThreshold float32) postprocess.NMSConfig {
	return postprocess.NMSConfig{
		IoUThreshold: iouThreshold,
		ClassAware:   c.Suppression == SuppressionPerClass,
		NumWorkers:   c.NumWorkers,
	}
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config {
	return d.cfg
}

// Model returns the model that decodes the output.
func (d *Detector) Model() model.Model {
	return d.model
}

// Detect decodes output with the configured thresholds and suppresses overlapping boxes.
//
// Arguments:
//   - output: A (anchors, 5+classes) or (1, anchors, 5+classes) float32 tensor.
//
// Returns:
//   - The kept detections in descending confidence order, never nil on success.
//   - error: yolov5.ErrShapeMismatch when the tensor does not match the layout.
func (d *Detector) Detect(output *tensor.Dense) ([]postprocess.Detection, error) {
	return d.DetectWith(output, d.cfg.ConfidenceThreshold, d.cfg.IoUThreshold)
}

// DetectWith is Detect with per-call thresholds.
func (d *Detector) DetectWith(
	output *tensor.Dense,
	confidenceThreshold, iouThreshold float32,
) ([]postprocess.Detection, error) {
	if err := postprocess.ValidateThreshold("confidence_threshold", confidenceThreshold); err != nil {
		d.metrics.ObserveDetectFailure(monitor.StatusBadInput)
		return nil, err
	}
	if err := postprocess.ValidateThreshold("iou_threshold", iouThreshold); err != nil {
		d.metrics.ObserveDetectFailure(monitor.StatusBadInput)
		return nil, err
	}

	start := time.Now()

	candidates, err := d.model.Decode(output, confidenceThreshold)
	if err != nil {
		d.metrics.ObserveDetectFailure(monitor.StatusBadInput)
		return nil, err
	}

	nms := d.cfg.nms(iouThreshold)
	kept := postprocess.ApplyNMS(candidates, &nms)

	elapsed := time.Since(start)
	d.metrics.ObserveDetect(len(candidates), len(kept), elapsed)
	d.logger.Debug("detect",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(kept)),
		zap.Float32("confidence_threshold", confidenceThreshold),
		zap.Float32("iou_threshold", iouThreshold),
		zap.Duration("elapsed", elapsed),
	)

	return kept, nil
}

// Analyze runs the inferencer once on img and detects objects in its output.
//
// The context is checked before inference. The decode and suppress pass runs to
// completion once started.
func (d *Detector) Analyze(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	if d.inferencer == nil {
		return nil, ErrNoInferencer
	}
	if img == nil {
		d.metrics.ObserveDetectFailure(monitor.StatusBadInput)
		return nil, errors.New("image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := d.inferencer.Infer(ctx, img)
	if err != nil {
		d.metrics.ObserveDetectFailure(monitor.StatusError)
		return nil, errors.Wrap(err, "inference failed")
	}

	return d.Detect(output)
}
