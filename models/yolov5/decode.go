// Package yolov5 - decode and postprocess YOLOv5 model outputs.
package yolov5

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/images"
	"github.com/nvr-ai/lingolens/models/postprocess"
)

const (
	// DefaultAnchors is the number of anchors a 320x320 YOLOv5 model emits.
	DefaultAnchors = 6300
	// DefaultClasses is the number of COCO classes.
	DefaultClasses = 80
	// boxColumns is the number of leading columns before the class scores:
	// cx, cy, w, h and objectness.
	boxColumns = 5
)

// ErrShapeMismatch is returned when the output tensor does not match the configured layout.
var ErrShapeMismatch = errors.New("output tensor shape does not match the model layout")

// Layout describes the shape of a model's raw output.
type Layout struct {
	// Anchors is the number of candidate rows.
	Anchors int `json:"anchors" yaml:"anchors"`
	// Classes is the number of per-class score columns.
	Classes int `json:"classes" yaml:"classes"`
}

// DefaultLayout returns the 6300x85 layout of the bundled model.
func DefaultLayout() Layout {
	return Layout{Anchors: DefaultAnchors, Classes: DefaultClasses}
}

// RowLength returns the number of values in one anchor row.
func (l Layout) RowLength() int { return boxColumns + l.Classes }

// Validate checks that the layout is usable.
func (l Layout) Validate() error {
	if l.Anchors <= 0 || l.Classes <= 0 {
		return errors.Errorf("invalid layout: anchors=%d classes=%d", l.Anchors, l.Classes)
	}
	return nil
}

// NewOutput builds an output tensor of shape (len(rows), len(rows[0])) from per-anchor
// output vectors.
//
// Arguments:
//   - rows: One output vector per anchor. Every row must have the same length.
//
// Returns:
//   - *tensor.Dense: The float32 tensor.
//   - error: ErrShapeMismatch when the rows are ragged or empty.
func NewOutput(rows [][]float32) (*tensor.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "no rows")
	}

	width := len(rows[0])
	backing := make([]float32, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.Wrapf(ErrShapeMismatch, "row %d has %d values, expected %d", i, len(row), width)
		}
		backing = append(backing, row...)
	}

	return tensor.New(tensor.WithShape(len(rows), width), tensor.WithBacking(backing)), nil
}

// rows returns the flat float32 data of output after checking it against the layout.
func rows(output *tensor.Dense, layout Layout) ([]float32, error) {
	if output == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil output")
	}
	if output.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrShapeMismatch, "dtype %v, expected float32", output.Dtype())
	}

	shape := output.Shape()
	switch {
	case len(shape) == 2:
	case len(shape) == 3 && shape[0] == 1:
		shape = shape[1:]
	default:
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v, expected (%d, %d) or (1, %d, %d)",
			output.Shape(), layout.Anchors, layout.RowLength(), layout.Anchors, layout.RowLength())
	}
	if shape[0] != layout.Anchors || shape[1] != layout.RowLength() {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v, expected (%d, %d)",
			output.Shape(), layout.Anchors, layout.RowLength())
	}

	if output.IsMaterializable() {
		output = output.Materialize().(*tensor.Dense)
	}
	data, ok := output.Data().([]float32)
	if !ok || len(data) < layout.Anchors*layout.RowLength() {
		return nil, errors.Wrap(ErrShapeMismatch, "backing data is shorter than the shape")
	}
	return data, nil
}

// Decode turns raw YOLOv5 output into candidate detections.
//
// Each row of the output is [cx, cy, w, h, objectness, score_0 ... score_{C-1}].
// A row is kept only when its objectness is strictly greater than threshold. The
// class is the index of the highest class score, and the first index wins a tie.
// Class scores never affect the confidence.
//
// Arguments:
//   - output: Tensor of shape (anchors, 5+C) or (1, anchors, 5+C).
//   - layout: The expected anchors and class count.
//   - threshold: The objectness cutoff.
//
// Returns:
//   - []postprocess.Detection: Candidates in anchor order. Never nil.
//   - error: ErrShapeMismatch when the tensor does not match the layout.
//
// Example Usage:
// ```go
//
//	out, _ := NewOutput(rows)
//	candidates, err := Decode(out, DefaultLayout(), 0.4)
//
// ```
func Decode(output *tensor.Dense, layout Layout, threshold float32) ([]postprocess.Detection, error) {
	data, err := rows(output, layout)
	if err != nil {
		return nil, err
	}

	numCols := layout.RowLength()
	results := make([]postprocess.Detection, 0)

	for i := 0; i < layout.Anchors; i++ {
		row := data[i*numCols : (i+1)*numCols]
		objConf := row[4]
		if !(objConf > threshold) {
			continue
		}

		scores := row[boxColumns:]
		classID := 0
		maxScore := scores[0]
		for j := 1; j < len(scores); j++ {
			if scores[j] > maxScore {
				maxScore = scores[j]
				classID = j
			}
		}

		results = append(results, postprocess.Detection{
			Box: images.Box{
				CenterX: row[0],
				CenterY: row[1],
				Width:   row[2],
				Height:  row[3],
			},
			Confidence: objConf,
			ClassID:    classID,
		})
	}

	return results, nil
}
