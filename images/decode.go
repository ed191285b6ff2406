package images

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatGIF is the GIF image format.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
	// FormatUnknown is returned for data no decoder recognizes.
	FormatUnknown ImageFormat = ""
)

// ErrUnsupportedFormat is returned for data in an unknown image format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var signatures = []struct {
	format ImageFormat
	magic  []byte
}{
	{FormatJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{FormatPNG, []byte("\x89PNG\r\n\x1a\n")},
	{FormatGIF, []byte("GIF8")},
	{FormatBMP, []byte("BM")},
	{FormatTIFF, []byte("II*\x00")},
	{FormatTIFF, []byte("MM\x00*")},
}

// DetectFormat identifies the image format from the leading bytes of data.
func DetectFormat(data []byte) ImageFormat {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return FormatWebP
	}
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.format
		}
	}
	return FormatUnknown
}

// Image is a decoded image with its source format.
type Image struct {
	image.Image
	// Format is the format the image was decoded from.
	Format ImageFormat `json:"format" yaml:"format"`
	// Width is the width after orientation was applied.
	Width int `json:"width" yaml:"width"`
	// Height is the height after orientation was applied.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes an encoded image.
//
// JPEG images are rotated according to their EXIF orientation, so that boxes
// detected on the result line up with what a viewer shows.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - *Image: The decoded image.
//   - error: ErrUnsupportedFormat for unknown data, or a decoding error.
//
// Example Usage:
// ```go
//
//	img, err := images.Decode(data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(img.Format, img.Width, img.Height)
//
// ```
func Decode(data []byte) (*Image, error) {
	format := DetectFormat(data)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatUnknown:
		return nil, ErrUnsupportedFormat
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", format)
	}

	bounds := img.Bounds()
	return &Image{
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
