// Package preprocess - converts decoded images into model input tensors.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeMinusOneToOne scales pixel values to [-1, 1].
	NormalizeMinusOneToOne
	// NormalizeStandardize applies mean and std normalization.
	NormalizeStandardize
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering (common for TFLite).
	ChannelOrderHWC
)

// ParseChannelOrder converts "chw" or "hwc" to a ChannelOrder.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "chw", "CHW", "":
		return ChannelOrderCHW, nil
	case "hwc", "HWC":
		return ChannelOrderHWC, nil
	default:
		return 0, errors.Errorf("unknown channel order %q", s)
	}
}

// ColorMode defines the color space of the image.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV models).
	ColorModeBGR
)

// channels is the number of color channels every model input carries.
const channels = 3

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues for standardization (if NormalizationType is Standardize).
	MeanValues []float32
	// StdValues for standardization (if NormalizationType is Standardize).
	StdValues []float32
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder
	// ColorMode defines the color space (RGB or BGR).
	ColorMode ColorMode
	// KeepAspectRatio if true, maintains aspect ratio with letterboxing.
	KeepAspectRatio bool
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color
}

// Size returns the number of float32 values in one preprocessed image.
func (c *ModelConfig) Size() int {
	return c.InputWidth * c.InputHeight * channels
}

// Shape returns the tensor shape [C, H, W] or [H, W, C].
func (c *ModelConfig) Shape() []int {
	if c.ChannelOrder == ChannelOrderCHW {
		return []int{channels, c.InputHeight, c.InputWidth}
	}
	return []int{c.InputHeight, c.InputWidth, channels}
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the preprocessed float32 tensor data.
	Data []float32
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// ScaleX is the horizontal scaling factor applied.
	ScaleX float64
	// ScaleY is the vertical scaling factor applied.
	ScaleY float64
	// PadLeft is the left padding applied for letterboxing.
	PadLeft int
	// PadTop is the top padding applied for letterboxing.
	PadTop int
	// Shape contains the tensor shape [C, H, W] or [H, W, C].
	Shape []int
}

// Preprocessor handles image preprocessing for detection models.
type Preprocessor struct {
	config *ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - A configured Preprocessor instance.
//
// Example Usage:
// ```go
//
//	preprocessor := NewPreprocessor(GetYOLOv5Config(320))
//	result, err := preprocessor.Preprocess(img)
//
// ```
func NewPreprocessor(config *ModelConfig) *Preprocessor {
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}
	return &Preprocessor{config: config}
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() *ModelConfig {
	return p.config
}

// Preprocess resizes, normalizes and lays out an image as a freshly allocated tensor.
//
// Arguments:
//   - img: The decoded input image.
//
// Returns:
//   - PreprocessingResult containing the preprocessed tensor and metadata.
//   - error if the image or configuration is unusable.
func (p *Preprocessor) Preprocess(img image.Image) (*PreprocessingResult, error) {
	return p.PreprocessInto(img, make([]float32, p.config.Size()))
}

// PreprocessInto is Preprocess writing into an existing buffer, such as the backing
// data of an inference session's input tensor.
//
// Arguments:
//   - img: The decoded input image.
//   - dst: Destination of at least Config().Size() values.
//
// Returns:
//   - PreprocessingResult whose Data aliases dst.
//   - error if the image is empty or dst is too small.
func (p *Preprocessor) PreprocessInto(img image.Image, dst []float32) (*PreprocessingResult, error) {
	if err := p.validateInput(img); err != nil {
		return nil, errors.Wrap(err, "input validation failed")
	}
	if len(dst) < p.config.Size() {
		return nil, errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), p.config.Size())
	}
	dst = dst[:p.config.Size()]

	originalWidth := img.Bounds().Dx()
	originalHeight := img.Bounds().Dy()

	resized, scaleX, scaleY, padLeft, padTop := p.resizeImage(img)
	p.imageToTensor(resized, dst)
	p.normalize(dst)

	return &PreprocessingResult{
		Data:           dst,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
		ScaleX:         scaleX,
		ScaleY:         scaleY,
		PadLeft:        padLeft,
		PadTop:         padTop,
		Shape:          p.config.Shape(),
	}, nil
}

// validateInput validates the input image and the configured dimensions.
func (p *Preprocessor) validateInput(img image.Image) error {
	if img == nil {
		return errors.New("image is nil")
	}
	if img.Bounds().Empty() {
		return errors.Errorf("invalid image dimensions: %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if p.config.InputWidth <= 0 || p.config.InputHeight <= 0 {
		return errors.Errorf("invalid input dimensions: %dx%d", p.config.InputWidth, p.config.InputHeight)
	}
	return nil
}

// resizeImage resizes the image to the model's input dimensions with bilinear
// interpolation.
//
// Returns:
//   - The resized image.
//   - scaleX: Horizontal scaling factor.
//   - scaleY: Vertical scaling factor.
//   - padLeft: Left padding for letterboxing.
//   - padTop: Top padding for letterboxing.
func (p *Preprocessor) resizeImage(img image.Image) (image.Image, float64, float64, int, int) {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	dstWidth := p.config.InputWidth
	dstHeight := p.config.InputHeight

	scaleX := float64(dstWidth) / float64(srcWidth)
	scaleY := float64(dstHeight) / float64(srcHeight)

	if !p.config.KeepAspectRatio {
		if srcWidth == dstWidth && srcHeight == dstHeight {
			return img, 1, 1, 0, 0
		}
		resized := resize.Resize(uint(dstWidth), uint(dstHeight), img, resize.Bilinear)
		return resized, scaleX, scaleY, 0, 0
	}

	scale := math.Min(scaleX, scaleY)
	newWidth := max(1, int(float64(srcWidth)*scale))
	newHeight := max(1, int(float64(srcHeight)*scale))

	resized := resize.Resize(uint(newWidth), uint(newHeight), img, resize.Bilinear)

	padLeft := (dstWidth - newWidth) / 2
	padTop := (dstHeight - newHeight) / 2

	letterboxed := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.Draw(letterboxed, letterboxed.Bounds(), &image.Uniform{p.config.LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(letterboxed, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		resized, resized.Bounds().Min, draw.Over)

	return letterboxed, scale, scale, padLeft, padTop
}

// imageToTensor writes the 0-255 channel values of img into dst.
func (p *Preprocessor) imageToTensor(img image.Image, dst []float32) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			ch0, ch1, ch2 := float32(r>>8), float32(g>>8), float32(b>>8)
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch2 = ch2, ch0
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				pos := y*width + x
				dst[pos] = ch0
				dst[plane+pos] = ch1
				dst[2*plane+pos] = ch2
			} else {
				dst[idx] = ch0
				dst[idx+1] = ch1
				dst[idx+2] = ch2
				idx += channels
			}
		}
	}
}

// normalize applies normalization to the tensor in place.
func (p *Preprocessor) normalize(tensor []float32) {
	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range tensor {
			tensor[i] /= 255.0
		}
	case NormalizeMinusOneToOne:
		for i := range tensor {
			tensor[i] = (tensor[i] / 127.5) - 1.0
		}
	case NormalizeStandardize:
		if len(p.config.MeanValues) != channels || len(p.config.StdValues) != channels {
			// Fallback to zero-to-one if mean/std not properly configured.
			for i := range tensor {
				tensor[i] /= 255.0
			}
			return
		}

		pixelsPerChannel := len(tensor) / channels
		for c := 0; c < channels; c++ {
			mean := p.config.MeanValues[c]
			std := p.config.StdValues[c]

			if p.config.ChannelOrder == ChannelOrderCHW {
				offset := c * pixelsPerChannel
				for i := 0; i < pixelsPerChannel; i++ {
					tensor[offset+i] = (tensor[offset+i] - mean) / std
				}
			} else {
				for i := c; i < len(tensor); i += channels {
					tensor[i] = (tensor[i] - mean) / std
				}
			}
		}
	}
}

// GetYOLOv5Config returns the configuration for YOLOv5 models: a plain bilinear
// stretch to a square input with pixel values scaled to [0, 1].
//
// Arguments:
//   - inputSize: The input size (320 for the bundled model, 640 for the stock export).
//   - order: CHW for ONNX exports, HWC for TFLite-style exports.
//
// Returns:
//   - A configured ModelConfig for YOLOv5.
func GetYOLOv5Config(inputSize int, order ChannelOrder) *ModelConfig {
	return &ModelConfig{
		Name:              "yolov5",
		InputWidth:        inputSize,
		InputHeight:       inputSize,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      order,
		ColorMode:         ColorModeRGB,
		KeepAspectRatio:   false,
	}
}
