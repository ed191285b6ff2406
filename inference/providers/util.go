package providers

import (
	"os"
	"runtime"
)

// SharedLibEnv is the environment variable that overrides the onnxruntime library path.
const SharedLibEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the onnxruntime shared library for the current platform.
//
// Arguments:
//   - configured: An explicit path. When empty, SharedLibEnv and then the bundled
//     third_party location for GOOS/GOARCH are used.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv(SharedLibEnv); env != "" {
		return env
	}
	return defaultSharedLibPath(runtime.GOOS, runtime.GOARCH)
}

func defaultSharedLibPath(goos, goarch string) string {
	switch goos {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib"
	default:
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
