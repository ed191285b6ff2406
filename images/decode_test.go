package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 200, A: 255})
		}
	}
	return img
}

func encode(t *testing.T, format ImageFormat, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		require.NoError(t, png.Encode(&buf, img))
	case FormatJPEG:
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	case FormatWebP:
		require.NoError(t, webp.Encode(&buf, img, &webp.Options{Lossless: true}))
	default:
		t.Fatalf("no encoder for %q", format)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	src := testImage(24, 12)

	for _, format := range []ImageFormat{FormatPNG, FormatJPEG, FormatWebP} {
		t.Run(string(format), func(t *testing.T) {
			data := encode(t, format, src)
			assert.Equal(t, format, DetectFormat(data))

			img, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, format, img.Format)
			assert.Equal(t, 24, img.Width)
			assert.Equal(t, 12, img.Height)
			assert.Equal(t, image.Rect(0, 0, 24, 12), img.Bounds())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("plain text"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Decode(nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	truncated := encode(t, FormatPNG, testImage(8, 8))[:20]
	_, err = Decode(truncated)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		data     []byte
		expected ImageFormat
	}{
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, FormatJPEG},
		{[]byte("GIF89a"), FormatGIF},
		{[]byte("BM...."), FormatBMP},
		{[]byte("II*\x00...."), FormatTIFF},
		{[]byte("MM\x00*...."), FormatTIFF},
		{[]byte("RIFF\x00\x00\x00\x00WEBPVP8L"), FormatWebP},
		{[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatUnknown},
		{[]byte{}, FormatUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, DetectFormat(tt.data), "%q", tt.data)
	}
}
