package ssim

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func gradientImage(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8((x + y) % 256)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestCompareImages_Identical(t *testing.T) {
	img := gradientImage(64)
	score := CompareImages(img, img)
	assert.InDelta(t, 1.0, score, 0.01)
}

func TestCompareImages_Different(t *testing.T) {
	a := gradientImage(64)
	b := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			b.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	score := CompareImages(a, b)
	assert.Less(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
