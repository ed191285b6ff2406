package postprocess

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/lingolens/images"
)

func det(cx, cy, w, h, conf float32, class int) Detection {
	return Detection{
		Box:        images.Box{CenterX: cx, CenterY: cy, Width: w, Height: h},
		Confidence: conf,
		ClassID:    class,
	}
}

// randomDetections builds a deterministic set of clustered candidates.
func randomDetections(seed int64, n int) []Detection {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Detection, n)
	for i := range out {
		out[i] = det(
			0.2+0.6*rng.Float32(),
			0.2+0.6*rng.Float32(),
			0.05+0.2*rng.Float32(),
			0.05+0.2*rng.Float32(),
			// Coarse confidences so that ties occur.
			float32(rng.Intn(10))/10,
			rng.Intn(3),
		)
	}
	return out
}

func TestApplyGreedyNMS(t *testing.T) {
	cfg := DefaultNMSConfig()

	tests := []struct {
		name     string
		input    []Detection
		expected []Detection
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: []Detection{},
		},
		{
			name:     "singleton is returned unchanged",
			input:    []Detection{det(0.3, 0.4, 0.1, 0.2, 0.7, 5)},
			expected: []Detection{det(0.3, 0.4, 0.1, 0.2, 0.7, 5)},
		},
		{
			name: "nested boxes keep only the most confident",
			input: []Detection{
				det(0.5, 0.5, 0.22, 0.22, 0.8, 0),
				det(0.5, 0.5, 0.2, 0.2, 0.9, 0),
			},
			expected: []Detection{det(0.5, 0.5, 0.2, 0.2, 0.9, 0)},
		},
		{
			name: "disjoint boxes are both kept in descending confidence",
			input: []Detection{
				det(0.1, 0.1, 0.1, 0.1, 0.6, 0),
				det(0.9, 0.9, 0.1, 0.1, 0.95, 1),
			},
			expected: []Detection{
				det(0.9, 0.9, 0.1, 0.1, 0.95, 1),
				det(0.1, 0.1, 0.1, 0.1, 0.6, 0),
			},
		},
		{
			name: "different classes still suppress each other",
			input: []Detection{
				det(0.5, 0.5, 0.2, 0.2, 0.9, 0),
				det(0.5, 0.5, 0.2, 0.2, 0.8, 7),
			},
			expected: []Detection{det(0.5, 0.5, 0.2, 0.2, 0.9, 0)},
		},
		{
			name: "equal confidence keeps candidate order",
			input: []Detection{
				det(0.2, 0.2, 0.1, 0.1, 0.5, 1),
				det(0.8, 0.8, 0.1, 0.1, 0.5, 2),
				det(0.5, 0.5, 0.1, 0.1, 0.5, 3),
			},
			expected: []Detection{
				det(0.2, 0.2, 0.1, 0.1, 0.5, 1),
				det(0.8, 0.8, 0.1, 0.1, 0.5, 2),
				det(0.5, 0.5, 0.1, 0.1, 0.5, 3),
			},
		},
		{
			name: "equal confidence overlap keeps the earlier candidate",
			input: []Detection{
				det(0.5, 0.5, 0.2, 0.2, 0.5, 1),
				det(0.5, 0.5, 0.2, 0.2, 0.5, 2),
			},
			expected: []Detection{det(0.5, 0.5, 0.2, 0.2, 0.5, 1)},
		},
		{
			name: "suppressed box does not suppress others",
			input: []Detection{
				// A and B overlap heavily, B and C overlap heavily, A and C do not.
				det(0.40, 0.5, 0.2, 0.2, 0.9, 0),
				det(0.45, 0.5, 0.2, 0.2, 0.8, 0),
				det(0.50, 0.5, 0.2, 0.2, 0.7, 0),
			},
			expected: []Detection{
				det(0.40, 0.5, 0.2, 0.2, 0.9, 0),
				det(0.50, 0.5, 0.2, 0.2, 0.7, 0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyGreedyNMS(tt.input, &cfg)
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApplyGreedyNMS_ThresholdIsExclusive(t *testing.T) {
	// Two boxes whose IoU is exactly 1/3: 0.5x1 boxes offset by 0.25 overlap by 0.25,
	// union is 0.75.
	a := det(0.50, 0.5, 0.5, 1, 0.9, 0)
	b := det(0.75, 0.5, 0.5, 1, 0.8, 0)
	iou := images.CalculateIoU(a.Box, b.Box)
	require.InDelta(t, 1.0/3.0, iou, 1e-6)

	// Equal to the threshold: suppressed.
	cfg := NMSConfig{IoUThreshold: iou}
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, &cfg), 1)

	// Just above the IoU: kept.
	cfg.IoUThreshold = iou + 1e-4
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, &cfg), 2)
}

func TestApplyGreedyNMS_ClassAware(t *testing.T) {
	cfg := NMSConfig{IoUThreshold: 0.5, ClassAware: true}
	input := []Detection{
		det(0.5, 0.5, 0.2, 0.2, 0.9, 0),
		det(0.5, 0.5, 0.2, 0.2, 0.8, 7),
		det(0.5, 0.5, 0.2, 0.2, 0.7, 0),
	}

	got := ApplyGreedyNMS(input, &cfg)
	assert.Equal(t, []Detection{input[0], input[1]}, got)
}

func TestApplyGreedyNMS_DoesNotMutateInput(t *testing.T) {
	cfg := DefaultNMSConfig()
	input := []Detection{
		det(0.1, 0.1, 0.1, 0.1, 0.2, 0),
		det(0.9, 0.9, 0.1, 0.1, 0.9, 0),
	}
	snapshot := append([]Detection(nil), input...)

	_ = ApplyGreedyNMS(input, &cfg)
	assert.Equal(t, snapshot, input)
}

func TestApplyGreedyNMS_Properties(t *testing.T) {
	for _, classAware := range []bool{false, true} {
		for seed := int64(1); seed <= 20; seed++ {
			cfg := NMSConfig{IoUThreshold: 0.45, ClassAware: classAware}
			input := randomDetections(seed, 60)
			got := ApplyGreedyNMS(input, &cfg)

			assert.LessOrEqual(t, len(got), len(input), "suppression never increases count")
			assert.NotEmpty(t, got)

			for i := 0; i < len(got); i++ {
				if i > 0 {
					assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence,
						"selection order is descending confidence")
				}
				for j := i + 1; j < len(got); j++ {
					if classAware && got[i].ClassID != got[j].ClassID {
						continue
					}
					assert.Less(t, images.CalculateIoU(got[i].Box, got[j].Box), cfg.IoUThreshold,
						"kept boxes %d and %d overlap", i, j)
				}
			}
		}
	}
}

func TestApplyNMS_MatchesGreedy(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 3, 8} {
		for seed := int64(1); seed <= 10; seed++ {
			input := randomDetections(seed, 200)
			cfg := NMSConfig{IoUThreshold: 0.3, NumWorkers: workers, ClassAware: seed%2 == 0}

			assert.Equal(t, ApplyGreedyNMS(input, &cfg), ApplyNMS(input, &cfg),
				"workers=%d seed=%d", workers, seed)
		}
	}
}

func TestApplyNMS_NilConfigUsesDefault(t *testing.T) {
	input := []Detection{
		det(0.5, 0.5, 0.2, 0.2, 0.9, 0),
		det(0.5, 0.5, 0.22, 0.22, 0.8, 1),
		det(0.9, 0.9, 0.1, 0.1, 0.7, 0),
	}
	def := DefaultNMSConfig()
	want := ApplyGreedyNMS(input, &def)
	require.Len(t, want, 2)

	assert.NotPanics(t, func() {
		assert.Equal(t, want, ApplyGreedyNMS(input, nil))
		assert.Equal(t, want, ApplyNMS(input, nil))
	})
}

func TestSortByConfidence(t *testing.T) {
	input := []Detection{
		det(0, 0, 1, 1, 0.1, 0),
		det(0, 0, 1, 1, 0.5, 1),
		det(0, 0, 1, 1, 0.5, 2),
		det(0, 0, 1, 1, 0.9, 3),
	}

	got := SortByConfidence(input)
	classes := make([]int, len(got))
	for i, d := range got {
		classes[i] = d.ClassID
	}
	assert.Equal(t, []int{3, 1, 2, 0}, classes)
	assert.Equal(t, 0, input[0].ClassID, "input order untouched")
}

func TestNMSConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		threshold float32
		wantErr   bool
	}{
		{name: "zero", threshold: 0},
		{name: "default", threshold: DefaultIoUThreshold},
		{name: "one", threshold: 1},
		{name: "negative", threshold: -0.1, wantErr: true},
		{name: "above one", threshold: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NMSConfig{IoUThreshold: tt.threshold}.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidThreshold))
				return
			}
			assert.NoError(t, err)
		})
	}
}
