package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/models/yolov5"
)

// fakeInferencer reports a single centered "person" and records Close.
type fakeInferencer struct {
	closed bool
}

func (f *fakeInferencer) Infer(context.Context, image.Image) (*tensor.Dense, error) {
	row := make([]float32, 85)
	copy(row, []float32{0.5, 0.5, 0.5, 0.5, 0.9, 1})
	return tensor.New(tensor.WithShape(1, 85), tensor.WithBacking(row)), nil
}

func (f *fakeInferencer) Close() error {
	f.closed = true
	return nil
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dict, err := filepath.Abs(filepath.Join("..", "..", "assets", "mscoco_dict.json"))
	require.NoError(t, err)

	data := fmt.Sprintf(`
detector:
  anchors: 1
  classes: 80
translate:
  online: false
  dictionary_path: %q
  default_language: es
`, dict)
	path := filepath.Join(t.TempDir(), "lingolens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "street.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 32))))
	return path
}

func factory(fake *fakeInferencer) func(inference.Config, yolov5.Layout) (inference.Inferencer, error) {
	return func(inference.Config, yolov5.Layout) (inference.Inferencer, error) {
		return fake, nil
	}
}

func TestRun_Image(t *testing.T) {
	fake := &fakeInferencer{}
	var stdout bytes.Buffer

	code := run([]string{"-config", writeConfig(t), "-image", writeImage(t)}, &stdout, factory(fake))
	require.Equal(t, 0, code)
	assert.True(t, fake.closed)

	var got result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 64, got.Width)
	assert.Equal(t, 32, got.Height)
	require.Len(t, got.Detections, 1)
	assert.Equal(t, "person", got.Detections[0].Label)
	assert.Equal(t, "persona", got.Detections[0].Translation)
	assert.Equal(t, 16, got.Detections[0].Rect.X1)
}

func TestRun_ClosesAppOnError(t *testing.T) {
	tests := []struct {
		name string
		args func(config string) []string
	}{
		{
			name: "unsupported language",
			args: func(config string) []string {
				return []string{"-config", config, "-image", writeImage(t), "-lang", "xx"}
			},
		},
		{
			name: "missing directory",
			args: func(config string) []string {
				return []string{"-config", config, "-dir", filepath.Join(t.TempDir(), "missing")}
			},
		},
		{
			name: "undecodable image",
			args: func(config string) []string {
				path := filepath.Join(t.TempDir(), "broken.png")
				require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
				return []string{"-config", config, "-image", path}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeInferencer{}
			var stdout bytes.Buffer

			code := run(tt.args(writeConfig(t)), &stdout, factory(fake))
			assert.Equal(t, 1, code)
			assert.True(t, fake.closed)
		})
	}
}

func TestRun_Usage(t *testing.T) {
	fake := &fakeInferencer{}
	var stdout bytes.Buffer

	assert.Equal(t, 2, run(nil, &stdout, factory(fake)))
	assert.Equal(t, 2, run([]string{"-image", "a.png", "-dir", "."}, &stdout, factory(fake)))
	assert.Equal(t, 2, run([]string{"-bogus"}, &stdout, factory(fake)))
	assert.False(t, fake.closed)
	assert.Empty(t, stdout.String())
}
