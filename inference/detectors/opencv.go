package detectors

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/models/yolov5"
)

// OpenCVNet runs a YOLOv5 ONNX model with the OpenCV DNN module.
type OpenCVNet struct {
	mu     sync.Mutex
	net    gocv.Net
	size   image.Point
	layout   yolov5.Layout
	boxScale float32
	closed   bool
}

// NewOpenCVNet loads the configured model with gocv.ReadNetFromONNX.
//
// Arguments:
//   - cfg: The inference configuration.
//   - layout: The output layout the model produces.
//
// Returns:
//   - *OpenCVNet: The loaded network.
//   - error: An error if the model file is missing or cannot be parsed.
func NewOpenCVNet(cfg inference.Config, layout yolov5.Layout) (*OpenCVNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("error reading network from %s", cfg.ModelPath)
	}

	zap.L().Info("opencv network ready",
		zap.String("model", cfg.ModelPath),
		zap.Int("input_size", cfg.InputSize),
	)

	return &OpenCVNet{
		net:    net,
		size:   image.Pt(cfg.InputSize, cfg.InputSize),
		layout:   layout,
		boxScale: cfg.BoxScale,
	}, nil
}

// Infer converts img into a normalized RGB blob, runs a forward pass and returns the
// output as a tensor.
func (n *OpenCVNet) Infer(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	// Resize, scale to [0, 1] and swap BGR to RGB in one step.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, n.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, errors.New("network is closed")
	}

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read output")
	}
	want := n.layout.Anchors * n.layout.RowLength()
	if len(data) != want {
		return nil, errors.Wrapf(yolov5.ErrShapeMismatch, "output has %d values (shape %v), expected %d",
			len(data), output.Size(), want)
	}

	backing := make([]float32, want)
	copy(backing, data)
	inference.NormalizeBoxes(backing, n.layout.RowLength(), n.boxScale)

	return tensor.New(
		tensor.WithShape(1, n.layout.Anchors, n.layout.RowLength()),
		tensor.WithBacking(backing),
	), nil
}

// Close releases the network.
func (n *OpenCVNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	return n.net.Close()
}
