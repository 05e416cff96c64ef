package vision

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

type ChannelOrder string

const (
	ChannelsRGB ChannelOrder = "rgb"
	ChannelsBGR ChannelOrder = "bgr"
)

func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch ChannelOrder(s) {
	case ChannelsRGB, ChannelsBGR:
		return ChannelOrder(s), nil
	}
	return "", fmt.Errorf("unknown channel order %q", s)
}

// Preprocess resizes the face to 112x112, maps each channel through
// (p - 127.5) / 128 and lays the result out as (1, 3, 112, 112).
func Preprocess(img image.Image, order ChannelOrder) (domain.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return domain.Tensor{}, domain.ErrNoFaceDetected.WithError(fmt.Errorf("empty face crop"))
	}

	const size = domain.TensorSize
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	data := make([]float32, domain.TensorChannels*plane)

	first, third := 0, 2
	if order == ChannelsBGR {
		first, third = 2, 0
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(x, y)
			r, g, b := resized.Pix[off], resized.Pix[off+1], resized.Pix[off+2]
			i := y*size + x
			data[first*plane+i] = normalize(r)
			data[plane+i] = normalize(g)
			data[third*plane+i] = normalize(b)
		}
	}

	return domain.NewTensor(data)
}

func normalize(p uint8) float32 {
	return (float32(p) - 127.5) / 128.0
}
