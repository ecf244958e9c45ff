package phash

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(size int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDistance_Bounds(t *testing.T) {
	dist, err := Distance("0000000000000000", "ffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, 64, dist)
}

func TestDistance_Identical(t *testing.T) {
	h := HashImage(solidImage(64, color.RGBA{R: 100, G: 100, B: 100, A: 255}))
	dist, err := Distance(h, h)
	require.NoError(t, err)
	assert.Equal(t, 0, dist)
}

func TestDistance_LengthMismatch(t *testing.T) {
	_, err := Distance("abc", "abcd")
	require.Error(t, err)
}

func TestHashImage_Stable(t *testing.T) {
	img := solidImage(64, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	h1 := HashImage(img)
	h2 := HashImage(img)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestHashImage_UniformityBranchDistinguishesBrightness(t *testing.T) {
	dark := HashImage(solidImage(64, color.RGBA{R: 10, G: 10, B: 10, A: 255}))
	light := HashImage(solidImage(64, color.RGBA{R: 240, G: 240, B: 240, A: 255}))
	assert.NotEqual(t, dark, light)
}
