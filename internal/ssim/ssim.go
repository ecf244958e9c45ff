// Package ssim computes the Structural Similarity Index between two
// images at a fixed target resolution.
package ssim

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

const (
	targetSize = 64
	c1         = (0.01 * 255) * (0.01 * 255)
	c2         = (0.03 * 255) * (0.03 * 255)
)

// Compare decodes two image buffers and returns their SSIM score.
func Compare(a, b []byte) (float64, error) {
	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return 0, pipelineerr.Validation("ssim_decode_failed", "failed to decode first image")
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return 0, pipelineerr.Validation("ssim_decode_failed", "failed to decode second image")
	}
	return CompareImages(imgA, imgB), nil
}

// CompareImages computes SSIM between two already-decoded images,
// resized to a fixed target resolution and converted to grayscale.
func CompareImages(a, b image.Image) float64 {
	grayA := grayPixels(a)
	grayB := grayPixels(b)

	n := float64(len(grayA))

	var sumA, sumB float64
	for i := range grayA {
		sumA += grayA[i]
		sumB += grayB[i]
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, covAB float64
	for i := range grayA {
		da := grayA[i] - meanA
		db := grayB[i] - meanB
		varA += da * da
		varB += db * db
		covAB += da * db
	}
	varA /= n
	varB /= n
	covAB /= n

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)

	score := numerator / denominator
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func grayPixels(img image.Image) []float64 {
	resized := imaging.Resize(img, targetSize, targetSize, imaging.Lanczos)
	gray := imaging.Grayscale(resized)

	bounds := gray.Bounds()
	out := make([]float64, 0, targetSize*targetSize)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, _, _, _ := gray.At(x, y).RGBA()
			out = append(out, float64(r>>8))
		}
	}
	return out
}
