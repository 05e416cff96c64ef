package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// DecodeImage decodes any allowed still format into an RGBA grid whose bounds
// start at (0, 0). JPEG EXIF orientation is applied, so portrait phone shots
// reach the detector upright.
func DecodeImage(data []byte) (*image.RGBA, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("%s image has no pixels", format))
	}

	rgba := ToRGBA(img)
	if format == "jpeg" {
		rgba = orient(rgba, jpegOrientation(data))
	}
	return rgba, nil
}

// ToRGBA returns img as a zero-origin RGBA, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
