// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/lingolens/images"
)

// DefaultIoUThreshold is the overlap at which a lower-confidence box is suppressed.
const DefaultIoUThreshold float32 = 0.5

// ErrInvalidThreshold is returned when a threshold lies outside [0, 1].
var ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. A candidate survives only while its IoU
	// with every selected box is strictly below this value.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, suppress only within same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// Number of goroutines used by ApplyNMS. Values below 1 mean one.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// DefaultNMSConfig returns the class-agnostic configuration with a 0.5 IoU threshold.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: DefaultIoUThreshold,
		ClassAware:   false,
		NumWorkers:   1,
	}
}

// Validate checks that the IoU threshold is usable.
//
// Returns:
//   - error: ErrInvalidThreshold when the threshold is outside [0, 1] or NaN.
func (c NMSConfig) Validate() error {
	return ValidateThreshold("iou_threshold", c.IoUThreshold)
}

// ValidateThreshold reports whether v is a valid probability-like threshold.
//
// Arguments:
//   - name: The name of the setting, used in the error message.
//   - v: The threshold value.
//
// Returns:
//   - error: ErrInvalidThreshold wrapped with the offending value, nil otherwise.
func ValidateThreshold(name string, v float32) error {
	// NaN fails both comparisons, so it is rejected too.
	if !(v >= 0 && v <= 1) {
		return errors.Wrapf(ErrInvalidThreshold, "%s=%v", name, v)
	}
	return nil
}

// SortByConfidence returns a copy of detections ordered by descending confidence.
//
// The sort is stable: detections with equal confidence keep their relative order,
// which keeps suppression deterministic.
func SortByConfidence(detections []Detection) []Detection {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// suppresses reports whether the selected detection removes the candidate.
func suppresses(config *NMSConfig, selected, candidate Detection) bool {
	if config.ClassAware && selected.ClassID != candidate.ClassID {
		return false
	}
	return !(images.CalculateIoU(selected.Box, candidate.Box) < config.IoUThreshold)
}

// orDefault returns config, or the default configuration when config is nil.
func orDefault(config *NMSConfig) *NMSConfig {
	if config == nil {
		def := DefaultNMSConfig()
		return &def
	}
	return config
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The candidates are stably sorted by descending confidence. The best remaining
// candidate is selected, every remaining candidate whose IoU with it is not below
// the threshold is discarded, and the process repeats until no candidates remain.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: NMS configuration. nil selects DefaultNMSConfig.
//
// Returns:
//   - The selected detections in selection order (descending confidence). Never nil.
func ApplyGreedyNMS(detections []Detection, config *NMSConfig) []Detection {
	config = orDefault(config)
	n := len(detections)
	if n == 0 {
		return []Detection{}
	}

	sorted := SortByConfidence(detections)
	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if suppresses(config, anchor, sorted[j]) {
				used[j] = true
			}
		}
	}

	return filtered
}

// ApplyNMS filters overlapping detections using Non-Maximum Suppression with the
// IoU computations of every round spread over config.NumWorkers goroutines.
//
// Each worker owns a disjoint range of the remaining candidates, so the result is
// identical to ApplyGreedyNMS. It only pays off for large candidate lists.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: NMS configuration. nil selects DefaultNMSConfig.
//
// Returns:
//   - The selected detections in selection order (descending confidence). Never nil.
func ApplyNMS(detections []Detection, config *NMSConfig) []Detection {
	config = orDefault(config)
	workers := config.NumWorkers
	n := len(detections)
	if workers <= 1 || n < 2*workers {
		return ApplyGreedyNMS(detections, config)
	}

	sorted := SortByConfidence(detections)
	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		remaining := n - (i + 1)
		if remaining == 0 {
			break
		}
		chunk := (remaining + workers - 1) / workers
		for start := i + 1; start < n; start += chunk {
			end := min(start+chunk, n)
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for j := start; j < end; j++ {
					if !used[j] && suppresses(config, anchor, sorted[j]) {
						used[j] = true
					}
				}
			}(start, end)
		}
		wg.Wait()
	}

	return filtered
}
