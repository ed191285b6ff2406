package postprocess

import (
	"fmt"

	"github.com/nvr-ai/lingolens/images"
)

// Detection represents a single detected object.
//
// Detections are plain values: two detections with equal fields are the same
// detection.
type Detection struct {
	// The bounding box of the detection, normalized to the model input.
	Box images.Box `json:"box" yaml:"box"`
	// The objectness reported by the model. It is used both for the confidence
	// cutoff and for suppression ordering.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// The predicted class index into the label table.
	ClassID int `json:"classId" yaml:"classId"`
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d (confidence %f): center (%f, %f), size (%f, %f)",
		d.ClassID, d.Confidence, d.Box.CenterX, d.Box.CenterY, d.Box.Width, d.Box.Height)
}
