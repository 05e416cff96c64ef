package media

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withOrientation splices a minimal big-endian EXIF APP1 segment carrying
// only the Orientation tag right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	require.Equal(t, []byte{0xFF, 0xD8}, jpg[:2])

	payload := []byte("Exif\x00\x00")
	payload = append(payload, 'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08)
	payload = append(payload, 0x00, 0x01)             // one entry
	payload = append(payload, 0x01, 0x12, 0x00, 0x03) // Orientation, SHORT
	payload = append(payload, 0x00, 0x00, 0x00, 0x01) // count
	payload = binary.BigEndian.AppendUint16(payload, orientation)
	payload = append(payload, 0x00, 0x00)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00) // no next IFD

	segment := []byte{0xFF, 0xE1}
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, segment...)
	return append(out, jpg[2:]...)
}

// halves paints the left half red and the right half blue.
func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func reddish(c color.RGBA) bool { return c.R > 200 && c.B < 60 }

func bluish(c color.RGBA) bool { return c.B > 200 && c.R < 60 }

func TestDecodeImage_AppliesEXIFOrientation(t *testing.T) {
	t.Run("orientation 6 rotates clockwise", func(t *testing.T) {
		data := withOrientation(t, encodeJPEG(t, halves(64, 32)), 6)

		img, err := DecodeImage(data)
		require.NoError(t, err)

		assert.Equal(t, image.Rect(0, 0, 32, 64), img.Bounds())
		assert.True(t, reddish(img.RGBAAt(16, 10)), "top should hold the stored left half, got %v", img.RGBAAt(16, 10))
		assert.True(t, bluish(img.RGBAAt(16, 54)), "bottom should hold the stored right half, got %v", img.RGBAAt(16, 54))
	})

	t.Run("orientation 1 keeps the layout", func(t *testing.T) {
		data := withOrientation(t, encodeJPEG(t, halves(64, 32)), 1)

		img, err := DecodeImage(data)
		require.NoError(t, err)

		assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
		assert.True(t, reddish(img.RGBAAt(10, 16)))
	})

	t.Run("jpeg without exif", func(t *testing.T) {
		img, err := DecodeImage(encodeJPEG(t, halves(64, 32)))
		require.NoError(t, err)

		assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
		assert.True(t, bluish(img.RGBAAt(54, 16)))
	})
}

func TestOrient(t *testing.T) {
	// 3x2 grid, pixel value encodes its stored position: R=x, G=y
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}

	tests := []struct {
		orientation int
		wantBounds  image.Rectangle
		// stored position that lands on the displayed top-left pixel
		wantOrigin image.Point
	}{
		{1, image.Rect(0, 0, 3, 2), image.Pt(0, 0)},
		{2, image.Rect(0, 0, 3, 2), image.Pt(2, 0)},
		{3, image.Rect(0, 0, 3, 2), image.Pt(2, 1)},
		{4, image.Rect(0, 0, 3, 2), image.Pt(0, 1)},
		{5, image.Rect(0, 0, 2, 3), image.Pt(0, 0)},
		{6, image.Rect(0, 0, 2, 3), image.Pt(0, 1)},
		{7, image.Rect(0, 0, 2, 3), image.Pt(2, 1)},
		{8, image.Rect(0, 0, 2, 3), image.Pt(2, 0)},
	}

	for _, tt := range tests {
		got := orient(src, tt.orientation)
		assert.Equal(t, tt.wantBounds, got.Bounds(), "orientation %d", tt.orientation)
		c := got.RGBAAt(0, 0)
		assert.Equal(t, tt.wantOrigin, image.Pt(int(c.R), int(c.G)), "orientation %d", tt.orientation)
	}
}
