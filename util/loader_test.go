package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"frame-10.jpg", "frame-2.png", "frame-1.jpeg",
		"zebra.png", "apple.BMP", "frame-x.jpg",
		"notes.txt", "model.onnx",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-0.jpg"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)

	names := make([]string, len(images))
	for i, img := range images {
		names[i] = filepath.Base(img.Path)
		assert.Equal(t, names[i], string(img.Data))
	}
	assert.Equal(t, []string{
		"frame-1.jpeg", "frame-2.png", "frame-10.jpg",
		"apple.BMP", "frame-x.jpg", "zebra.png",
	}, names)

	assert.Equal(t, 1, images[0].Frame)
	assert.Equal(t, 10, images[2].Frame)
	assert.Equal(t, NoFrame, images[3].Frame)
}

func TestLoadDirectoryImages_Empty(t *testing.T) {
	images, err := LoadDirectoryImageFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestLoadDirectoryImages_MissingDir(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG"))
	assert.True(t, IsImageFile("b.tiff"))
	assert.False(t, IsImageFile("c.onnx"))
	assert.False(t, IsImageFile("noext"))
}
