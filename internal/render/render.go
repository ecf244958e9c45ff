// Package render defines the FrameRenderer contract used by the QA
// engine: given a scene handle and a camera pose, produce a rasterized
// image. Two implementations are provided: a deterministic mock seeded
// by pose and frame index (used for QA without a GPU), and a real
// renderer stub whose GPU path is out of scope for this repository.
package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/toursvc/conversion-pipeline/internal/contract"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// Mode selects which FrameRenderer implementation the process uses.
// Read once at startup from QA_RENDERER_MODE and cached in the qa.Engine.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeReal Mode = "real"
)

// ModeFromEnv reads QA_RENDERER_MODE, defaulting to mock.
func ModeFromEnv() Mode {
	switch os.Getenv("QA_RENDERER_MODE") {
	case "real":
		return ModeReal
	default:
		return ModeMock
	}
}

// SceneHandle opaquely identifies a renderable scene (e.g. a local path
// to a staged PLY/SOG file).
type SceneHandle string

const frameSize = 256

// FrameRenderer renders one frame of a scene at a given pose.
type FrameRenderer interface {
	Render(ctx context.Context, scene SceneHandle, pose contract.CameraPose, frameIndex int) ([]byte, error)
}

// NewForMode constructs the renderer implementation selected by mode.
func NewForMode(mode Mode) FrameRenderer {
	if mode == ModeReal {
		return &RealRenderer{}
	}
	return &MockRenderer{}
}

// MockRenderer produces a deterministic image whose pixels are a pure
// function of (frameIndex, pose, a fixed seed) — the scene handle is
// intentionally ignored so that rendering "the same view" of the source
// and converted scene agree, which is what makes the QA pipeline
// testable end-to-end without a GPU.
type MockRenderer struct{}

const mockSeed = 42

func (m *MockRenderer) Render(_ context.Context, _ SceneHandle, pose contract.CameraPose, frameIndex int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameSize, frameSize))

	h := fnv.New64a()
	binary.Write(h, binary.LittleEndian, int64(frameIndex))
	binary.Write(h, binary.LittleEndian, pose.X)
	binary.Write(h, binary.LittleEndian, pose.Y)
	binary.Write(h, binary.LittleEndian, pose.Z)
	binary.Write(h, binary.LittleEndian, pose.Pitch)
	binary.Write(h, binary.LittleEndian, pose.Yaw)
	binary.Write(h, binary.LittleEndian, int64(mockSeed))
	base := h.Sum64()

	for y := 0; y < frameSize; y++ {
		for x := 0; x < frameSize; x++ {
			r := uint8((base >> 0) & 0xFF)
			g := uint8((base >> 8) & 0xFF)
			b := uint8((base >> 16) & 0xFF)

			// Modulate by position so frames aren't flat-colored,
			// while staying a pure function of (frameIndex, pose, seed).
			angle := (pose.Yaw + float64(x+y)) * math.Pi / 180
			mod := uint8((math.Sin(angle) + 1) * 32)

			img.Set(x, y, color.RGBA{
				R: r ^ mod,
				G: g ^ mod,
				B: b ^ mod,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, pipelineerr.Rendering("mock_encode_failed", "failed to encode mock frame", err)
	}
	return buf.Bytes(), nil
}

// RealRenderer is the GPU-backed renderer. Its contract is "same
// signature, same image dimensions, deterministic given (sceneHandle,
// pose, frameIndex)"; the GPU pipeline itself is out of scope here.
type RealRenderer struct{}

func (r *RealRenderer) Render(_ context.Context, _ SceneHandle, _ contract.CameraPose, _ int) ([]byte, error) {
	return nil, pipelineerr.Rendering("real_renderer_unavailable", "real GPU renderer is not wired in this build", nil)
}
