package webp

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRIFF(chunkTag string, payload []byte) []byte {
	if len(payload)%2 == 1 {
		payload = append(payload, 0)
	}
	out := make([]byte, 0, 12+8+len(payload))
	out = append(out, "RIFF"...)
	size := uint32(4 + 8 + len(payload))
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, size)
	out = append(out, sizeBuf...)
	out = append(out, "WEBP"...)
	out = append(out, chunkTag...)
	tagSizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(tagSizeBuf, uint32(len(payload)))
	out = append(out, tagSizeBuf...)
	out = append(out, payload...)
	return out
}

func TestValidate_Lossless(t *testing.T) {
	buf := buildRIFF("VP8L", []byte{0x2F, 0, 0, 0, 0})
	res := Validate(buf)
	assert.True(t, res.IsWebP)
	assert.True(t, res.IsValid)
	assert.True(t, res.IsLossless)
	assert.Equal(t, CompressionLossless, res.CompressionType)
}

func TestValidate_Lossy(t *testing.T) {
	buf := buildRIFF("VP8 ", []byte{0x9D, 0x01, 0x2A})
	res := Validate(buf)
	assert.True(t, res.IsWebP)
	assert.True(t, res.IsValid)
	assert.False(t, res.IsLossless)
	assert.Equal(t, CompressionLossy, res.CompressionType)
}

func TestValidate_NotWebP(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, png.Encode(&buf, img))

	res := Validate(buf.Bytes())
	assert.False(t, res.IsWebP)
}

func TestEnforceLossless(t *testing.T) {
	lossless := buildRIFF("VP8L", []byte{0x2F, 0, 0, 0, 0})
	require.NoError(t, EnforceLossless(lossless))

	lossy := buildRIFF("VP8 ", []byte{0x9D, 0x01, 0x2A})
	err := EnforceLossless(lossy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be lossless")

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	err = EnforceLossless(pngBuf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a WEBP")
}

func TestConvertToLossless_RoundTripsThroughValidate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 1, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := ConvertToLossless(buf.Bytes())
	require.NoError(t, err)

	res := Validate(out)
	assert.True(t, res.IsWebP)
	assert.True(t, res.IsLossless)
}
