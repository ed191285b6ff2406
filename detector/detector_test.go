package detector

import (
	"context"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/images"
	"github.com/nvr-ai/lingolens/models"
	"github.com/nvr-ai/lingolens/models/model"
	"github.com/nvr-ai/lingolens/models/postprocess"
	"github.com/nvr-ai/lingolens/models/yolov5"
	"github.com/nvr-ai/lingolens/monitor"
)

// fakeInferencer returns a fixed output and counts calls.
type fakeInferencer struct {
	mu     sync.Mutex
	output *tensor.Dense
	err    error
	calls  int
}

func (f *fakeInferencer) Infer(_ context.Context, _ image.Image) (*tensor.Dense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func (f *fakeInferencer) Close() error { return nil }

func row(cx, cy, w, h, obj float32, scores ...float32) []float32 {
	return append([]float32{cx, cy, w, h, obj}, scores...)
}

// testConfig is a three-anchor, two-class layout.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Anchors = 3
	cfg.Classes = 2
	return cfg
}

func output(t *testing.T, rows ...[]float32) *tensor.Dense {
	t.Helper()
	out, err := yolov5.NewOutput(rows)
	require.NoError(t, err)
	return out
}

// overlapping holds two boxes with IoU about 0.82 and one distant box.
func overlapping(t *testing.T, secondClass int) *tensor.Dense {
	scores := []float32{0, 0}
	scores[secondClass] = 1
	return output(t,
		row(0.30, 0.30, 0.20, 0.20, 0.90, 1, 0),
		row(0.32, 0.30, 0.20, 0.20, 0.80, scores...),
		row(0.80, 0.80, 0.10, 0.10, 0.70, 0, 1),
	)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.4, cfg.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.5, cfg.IoUThreshold, 1e-6)
	assert.Equal(t, SuppressionAgnostic, cfg.Suppression)
	assert.Equal(t, 6300, cfg.Anchors)
	assert.Equal(t, 80, cfg.Classes)
	assert.Equal(t, model.ModelFamilyYOLO, cfg.Labels)
	assert.NoError(t, cfg.Validate())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{name: "confidence above one", mutate: func(c *Config) { c.ConfidenceThreshold = 1.5 }, sentinel: ErrInvalidThreshold},
		{name: "negative confidence", mutate: func(c *Config) { c.ConfidenceThreshold = -0.1 }, sentinel: ErrInvalidThreshold},
		{name: "iou above one", mutate: func(c *Config) { c.IoUThreshold = 2 }, sentinel: ErrInvalidThreshold},
		{name: "unknown suppression", mutate: func(c *Config) { c.Suppression = "sideways" }},
		{name: "zero anchors", mutate: func(c *Config) { c.Anchors = 0 }},
		{name: "zero classes", mutate: func(c *Config) { c.Classes = 0 }},
		{name: "negative workers", mutate: func(c *Config) { c.NumWorkers = -1 }},
		{name: "unknown labels", mutate: func(c *Config) { c.Labels = "imagenet" }, sentinel: models.ErrUnsupportedLabels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			d, err := New(cfg)
			require.Error(t, err)
			assert.Nil(t, d)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
		})
	}
}

func TestNew_EmptySuppressionDefaultsToAgnostic(t *testing.T) {
	cfg := testConfig()
	cfg.Suppression = ""
	d, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, SuppressionAgnostic, d.Config().Suppression)
	assert.Equal(t, 3, d.Model().Config().Anchors)
}

func TestNew_LabelsSelectModelFamily(t *testing.T) {
	cfg := testConfig()
	cfg.Labels = model.ModelFamilyCOCO
	d, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, model.ModelFamilyCOCO, d.Model().Config().Family)

	cfg.Labels = ""
	d, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, model.ModelFamilyYOLO, d.Model().Config().Family)
}

func TestDetect(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	t.Run("nothing above threshold", func(t *testing.T) {
		dets, err := d.Detect(output(t,
			row(0.5, 0.5, 0.1, 0.1, 0.39, 1, 0),
			row(0.5, 0.5, 0.1, 0.1, 0.40, 1, 0),
			row(0.5, 0.5, 0.1, 0.1, 0.00, 1, 0),
		))
		require.NoError(t, err)
		assert.NotNil(t, dets)
		assert.Empty(t, dets)
	})

	t.Run("overlapping box is suppressed", func(t *testing.T) {
		dets, err := d.Detect(overlapping(t, 0))
		require.NoError(t, err)
		require.Len(t, dets, 2)
		assert.InDelta(t, 0.90, dets[0].Confidence, 1e-6)
		assert.Equal(t, 0, dets[0].ClassID)
		assert.InDelta(t, 0.70, dets[1].Confidence, 1e-6)
		assert.Equal(t, 1, dets[1].ClassID)
	})

	t.Run("agnostic mode suppresses across classes", func(t *testing.T) {
		dets, err := d.Detect(overlapping(t, 1))
		require.NoError(t, err)
		assert.Len(t, dets, 2)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := d.Detect(output(t, row(0.5, 0.5, 0.1, 0.1, 0.9, 1, 0)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, yolov5.ErrShapeMismatch))
	})
}

func TestDetect_PerClass(t *testing.T) {
	cfg := testConfig()
	cfg.Suppression = SuppressionPerClass
	d, err := New(cfg)
	require.NoError(t, err)

	dets, err := d.Detect(overlapping(t, 1))
	require.NoError(t, err)
	require.Len(t, dets, 3)
	assert.Equal(t, []int{0, 1, 1}, []int{dets[0].ClassID, dets[1].ClassID, dets[2].ClassID})
}

func TestDetectWith(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)
	out := overlapping(t, 0)

	t.Run("higher confidence threshold", func(t *testing.T) {
		dets, err := d.DetectWith(out, 0.85, 0.5)
		require.NoError(t, err)
		require.Len(t, dets, 1)
		assert.InDelta(t, 0.90, dets[0].Confidence, 1e-6)
	})

	t.Run("iou threshold above the overlap keeps both", func(t *testing.T) {
		dets, err := d.DetectWith(out, 0.4, 0.9)
		require.NoError(t, err)
		assert.Len(t, dets, 3)
	})

	t.Run("invalid thresholds", func(t *testing.T) {
		_, err := d.DetectWith(out, 1.1, 0.5)
		assert.True(t, errors.Is(err, ErrInvalidThreshold))
		_, err = d.DetectWith(out, 0.4, -1)
		assert.True(t, errors.Is(err, ErrInvalidThreshold))
	})
}

// TestDetect_Guarantees checks the output properties on the default layout.
func TestDetect_Guarantees(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumWorkers = 4
	d, err := New(cfg)
	require.NoError(t, err)

	rows := make([][]float32, cfg.Anchors)
	for i := range rows {
		r := make([]float32, 5+cfg.Classes)
		r[0] = float32(i%30) / 30
		r[1] = float32(i/30%30) / 30
		r[2], r[3] = 0.08, 0.08
		r[4] = float32(i%17) / 16
		r[5+i%cfg.Classes] = 1
		rows[i] = r
	}

	dets, err := d.Detect(output(t, rows...))
	require.NoError(t, err)
	require.NotEmpty(t, dets)

	for i, a := range dets {
		assert.Greater(t, a.Confidence, cfg.ConfidenceThreshold)
		if i > 0 {
			assert.GreaterOrEqual(t, dets[i-1].Confidence, a.Confidence)
		}
		for _, b := range dets[i+1:] {
			assert.Less(t, images.CalculateIoU(a.Box, b.Box), cfg.IoUThreshold)
		}
	}

	greedy, err := New(DefaultConfig())
	require.NoError(t, err)
	expected, err := greedy.Detect(output(t, rows...))
	require.NoError(t, err)
	assert.Equal(t, expected, dets)
}

func TestDetect_Concurrent(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)
	out := overlapping(t, 0)

	expected, err := d.Detect(out)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]postprocess.Detection, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = d.Detect(out)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, expected, r)
	}
}

func TestAnalyze(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	t.Run("runs inference once", func(t *testing.T) {
		fake := &fakeInferencer{output: overlapping(t, 0)}
		d, err := New(testConfig(), WithInferencer(fake))
		require.NoError(t, err)

		dets, err := d.Analyze(context.Background(), img)
		require.NoError(t, err)
		assert.Len(t, dets, 2)
		assert.Equal(t, 1, fake.calls)
	})

	t.Run("cancelled context skips inference", func(t *testing.T) {
		fake := &fakeInferencer{output: overlapping(t, 0)}
		d, err := New(testConfig(), WithInferencer(fake))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = d.Analyze(ctx, img)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, fake.calls)
	})

	t.Run("inference error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		d, err := New(testConfig(), WithInferencer(&fakeInferencer{err: boom}))
		require.NoError(t, err)

		_, err = d.Analyze(context.Background(), img)
		require.Error(t, err)
		assert.Equal(t, boom, errors.Cause(err))
	})

	t.Run("no inferencer", func(t *testing.T) {
		d, err := New(testConfig())
		require.NoError(t, err)

		_, err = d.Analyze(context.Background(), img)
		assert.ErrorIs(t, err, ErrNoInferencer)
	})

	t.Run("nil image", func(t *testing.T) {
		fake := &fakeInferencer{output: overlapping(t, 0)}
		d, err := New(testConfig(), WithInferencer(fake))
		require.NoError(t, err)

		_, err = d.Analyze(context.Background(), nil)
		assert.Error(t, err)
		assert.Zero(t, fake.calls)
	})
}

func TestDetect_RecordsMetrics(t *testing.T) {
	m := monitor.New()
	d, err := New(testConfig(), WithMetrics(m))
	require.NoError(t, err)

	_, err = d.Detect(overlapping(t, 0))
	require.NoError(t, err)
	_, err = d.DetectWith(overlapping(t, 0), 2, 0.5)
	require.Error(t, err)

	expected := `
# HELP lingolens_detect_requests_total Total number of detect calls by outcome.
# TYPE lingolens_detect_requests_total counter
lingolens_detect_requests_total{status="bad_input"} 1
lingolens_detect_requests_total{status="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"lingolens_detect_requests_total"))
}

func TestDetect_LogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d, err := New(testConfig(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = d.Detect(overlapping(t, 0))
	require.NoError(t, err)

	entries := logs.FilterMessage("detect").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 3, fields["candidates"])
	assert.EqualValues(t, 2, fields["kept"])
}
