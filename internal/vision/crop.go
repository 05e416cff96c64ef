package vision

import (
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// CropRegion expands box by margin on every side after shifting it up by
// shift*height, then clamps it to bounds.
func CropRegion(box domain.FaceBox, bounds image.Rectangle, margin, shift float64) (image.Rectangle, error) {
	if box.Empty() {
		return image.Rectangle{}, domain.ErrNoFaceDetected.WithError(fmt.Errorf("empty face box %+v", box))
	}

	y := max(box.Y-int(float64(box.Height)*shift), 0)
	xMargin := int(float64(box.Width) * margin)
	yMargin := int(float64(box.Height) * margin)

	r := image.Rect(
		box.X-xMargin,
		y-yMargin,
		box.X+box.Width+xMargin,
		y+box.Height+yMargin,
	).Intersect(bounds)

	if r.Empty() {
		return image.Rectangle{}, domain.ErrNoFaceDetected.WithError(fmt.Errorf("face box %+v lies outside image %v", box, bounds))
	}
	return r, nil
}

// Crop returns a zero-origin copy of the crop region.
func Crop(img *image.RGBA, box domain.FaceBox, margin, shift float64) (*image.RGBA, error) {
	r, err := CropRegion(box, img.Bounds(), margin, shift)
	if err != nil {
		return nil, err
	}

	sub := img.SubImage(r).(*image.RGBA)
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for row := 0; row < r.Dy(); row++ {
		srcOff := sub.PixOffset(r.Min.X, r.Min.Y+row)
		copy(out.Pix[row*out.Stride:row*out.Stride+r.Dx()*4], sub.Pix[srcOff:srcOff+r.Dx()*4])
	}
	return out, nil
}
