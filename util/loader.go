// Package util - Batch loading of image files for offline detection.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// framePrefix marks files extracted from a video, e.g. frame-12.jpg.
const framePrefix = "frame-"

// NoFrame is the Frame of files whose name carries no frame number.
const NoFrame = -1

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file, or NoFrame.
	Frame int
}

// IsImageFile reports whether name has an extension the decoder understands.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// frameNumber parses the N of frame-N.ext.
func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, framePrefix) {
		return NoFrame
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, framePrefix))
	if err != nil || n < 0 {
		return NoFrame
	}
	return n
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Numbered frames come first in frame order, followed by the other images in
// name order. Subdirectories and non-image files are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	images := make([]ImageFile, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !IsImageFile(file.Name()) {
			continue
		}

		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", imgPath)
		}
		images = append(images, ImageFile{
			Path:  imgPath,
			Data:  data,
			Frame: frameNumber(file.Name()),
		})
	}

	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		switch {
		case a.Frame == NoFrame && b.Frame == NoFrame:
			return a.Path < b.Path
		case a.Frame == NoFrame:
			return false
		case b.Frame == NoFrame:
			return true
		default:
			return a.Frame < b.Frame
		}
	})

	return images, nil
}
