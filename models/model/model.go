// Package model - Definitions shared by every detection model.
package model

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family.
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyVOC is the Pascal VOC model family.
	ModelFamilyVOC Family = "voc"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv5 is the name of the YOLOv5 model.
	ModelNameYOLOv5 Name = "yolov5"
)

// Config describes a model and how its output is post-processed.
type Config struct {
	// Name selects the model implementation.
	Name Name `json:"name" yaml:"name"`
	// Family selects the label table.
	Family Family `json:"family" yaml:"family"`
	// Path is the location of the model file.
	Path string `json:"path" yaml:"path"`
	// InputSize is the square input resolution in pixels.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Anchors is the number of candidate rows in the output.
	Anchors int `json:"anchors" yaml:"anchors"`
	// Classes is the number of class score columns in the output.
	Classes int `json:"classes" yaml:"classes"`
	// ConfidenceThreshold is the objectness cutoff.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NMS configures suppression.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// Model is a detection model whose raw output can be turned into detections.
type Model interface {
	// Config returns the configuration the model was built with.
	Config() Config
	// Decode turns a raw output tensor into candidates above the confidence threshold.
	Decode(output *tensor.Dense, confidenceThreshold float32) ([]postprocess.Detection, error)
	// PostProcess decodes and suppresses a raw output tensor.
	PostProcess(output *tensor.Dense, confidenceThreshold float32, nms *postprocess.NMSConfig) ([]postprocess.Detection, error)
}
