package detectors

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/models/yolov5"
)

// New creates the Inferencer for the configured engine.
//
// Arguments:
//   - cfg: The inference configuration.
//   - layout: The output layout the model produces.
//
// Returns:
//   - inference.Inferencer: The loaded runtime.
//   - error: inference.ErrUnsupportedEngine for an unknown engine, or a load error.
//
// Example Usage:
// ```go
//
//	inferencer, err := New(inference.DefaultConfig(), yolov5.DefaultLayout())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inferencer.Close()
//
// ```
func New(cfg inference.Config, layout yolov5.Layout) (inference.Inferencer, error) {
	switch cfg.Engine {
	case inference.EngineONNX:
		s, err := NewONNXSession(cfg, layout)
		if err != nil {
			return nil, err
		}
		return s, nil
	case inference.EngineOpenCV:
		n, err := NewOpenCVNet(cfg, layout)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, errors.Wrapf(inference.ErrUnsupportedEngine, "%q", cfg.Engine)
	}
}
