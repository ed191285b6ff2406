// Package providers - ONNX Runtime execution provider selection.
package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/lingolens/models/model"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ErrUnsupportedProvider is returned for an unknown provider backend.
var ErrUnsupportedProvider = errors.New("unsupported execution provider")

// Config selects and tunes the execution provider of a session.
type Config struct {
	// Backend specifies the execution provider. Empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for CUDA and OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// DeviceType overrides the OpenVINO accelerator (CPU, GPU, NPU).
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Precision is the OpenVINO inference precision.
	Precision model.Precision `json:"precision" yaml:"precision"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero uses the runtime default.
	IntraOpNumThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero uses the runtime default.
	InterOpNumThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// Validate checks the backend and precision names.
func (c Config) Validate() error {
	switch c.Backend {
	case "", CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
	default:
		return errors.Wrapf(ErrUnsupportedProvider, "%q", c.Backend)
	}
	return c.Precision.Validate()
}

// OpenVINOOptions returns the provider option map passed to OpenVINO.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
func (c Config) OpenVINOOptions() map[string]string {
	deviceType := c.DeviceType
	if deviceType == "" {
		deviceType = "CPU"
	}
	precision := c.Precision
	if precision == "" {
		precision = model.PrecisionFP32
	}
	opts := map[string]string{
		"device_id":   strconv.Itoa(c.DeviceID),
		"device_type": deviceType,
		"precision":   string(precision),
	}
	if c.IntraOpNumThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(c.IntraOpNumThreads)
	}
	return opts
}

// CUDAOptions returns the provider option map passed to CUDA.
func (c Config) CUDAOptions() map[string]string {
	return map[string]string{
		"device_id":              strconv.Itoa(c.DeviceID),
		"cudnn_conv_algo_search": "HEURISTIC",
	}
}

// NewSessionOptions creates ONNX Runtime session options with the configured
// threading, graph optimization and execution provider. The caller owns the
// returned options and must Destroy them.
//
// Arguments:
//   - c: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The configured options.
//   - error: An error if the backend is unknown or could not be enabled.
func NewSessionOptions(c Config) (*ort.SessionOptions, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := apply(options, c); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func apply(options *ort.SessionOptions, c Config) error {
	if c.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.IntraOpNumThreads); err != nil {
			return errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if c.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(c.InterOpNumThreads); err != nil {
			return errors.Wrap(err, "error setting inter-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	switch c.Backend {
	case CUDAProviderBackend:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA provider options")
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(c.CUDAOptions()); err != nil {
			return errors.Wrap(err, "error updating CUDA provider options")
		}
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.OpenVINOOptions()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	}
	return nil
}
