package model

import "github.com/pkg/errors"

// Precision is the inference precision requested from an execution provider.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type Precision string

const (
	// PrecisionDefault leaves the choice to the provider.
	PrecisionDefault Precision = ""
	// PrecisionAccuracy keeps the precision of the exported model (OpenVINO's default).
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 is 32-bit floating point.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 is 16-bit floating point.
	PrecisionFP16 Precision = "FP16"
	// PrecisionINT8 is 8-bit integer.
	PrecisionINT8 Precision = "INT8"
)

// ErrUnsupportedPrecision is returned for an unknown precision name.
var ErrUnsupportedPrecision = errors.New("unsupported precision")

// Validate checks that p is one of the known precisions.
func (p Precision) Validate() error {
	switch p {
	case PrecisionDefault, PrecisionAccuracy, PrecisionFP32, PrecisionFP16, PrecisionINT8:
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedPrecision, "%q", p)
	}
}
