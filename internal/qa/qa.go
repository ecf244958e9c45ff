// Package qa implements the QA engine: it renders the source and
// converted scenes along the canonical camera path, scores each pair of
// frames by SSIM and perceptual-hash distance, and aggregates a
// pass/fail report.
package qa

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toursvc/conversion-pipeline/internal/contract"
	"github.com/toursvc/conversion-pipeline/internal/phash"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
	"github.com/toursvc/conversion-pipeline/internal/render"
	"github.com/toursvc/conversion-pipeline/internal/ssim"
)

// FrameResult is the per-pose comparison between source and converted
// renders.
type FrameResult struct {
	Index         int
	Pose          contract.CameraPose
	SSIM          float64
	PHashDistance int
	Passed        bool
	ConvertedHash string
}

// Metrics aggregates across all rendered frames.
type Metrics struct {
	AvgSSIM          float64
	MinSSIM          float64
	MaxSSIM          float64
	AvgPHashDistance float64
	FramesRendered   int
	FramesPassed     int
	RenderElapsed    time.Duration
}

// Report is always emitted, even when the asset does not pass QA;
// callers gate on Passed && Score >= threshold.
type Report struct {
	Passed       bool
	Score        float64
	Frames       []FrameResult
	Metrics      Metrics
	GeneratedAt  time.Time
	Mode         render.Mode
	RendererInfo string

	// ConvertedHash is the perceptual hash of the converted scene at
	// frame 0, used as the asset's pHash for regression baselines.
	// Replaces the source system's weaker stand-in of stringifying the
	// frame-0 SSIM score (see spec's design notes).
	ConvertedHash string
}

// Options configures one QA run.
type Options struct {
	// Poses overrides the canonical camera path. Nil uses the frozen
	// default from internal/contract.
	Poses        []contract.CameraPose
	RendererInfo string
}

// Engine renders and scores frames using the configured renderer.
type Engine struct {
	renderer render.FrameRenderer
	mode     render.Mode
}

// NewEngine constructs a QA engine bound to one renderer mode, cached
// for the lifetime of the pipeline.
func NewEngine(mode render.Mode) *Engine {
	return &Engine{renderer: render.NewForMode(mode), mode: mode}
}

// Mode reports the renderer mode this engine was constructed with.
func (e *Engine) Mode() render.Mode { return e.mode }

// Run renders sourceScene and convertedScene along the canonical (or
// overridden) pose list and scores every frame pair.
func (e *Engine) Run(ctx context.Context, sourceScene, convertedScene render.SceneHandle, opts Options) (*Report, error) {
	poses := opts.Poses
	if poses == nil {
		poses = contract.CanonicalCameraPath()
	}

	start := time.Now()
	frames := make([]FrameResult, len(poses))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, pose := range poses {
		i, pose := i, pose
		g.Go(func() error {
			frame, err := e.scoreFrame(gCtx, sourceScene, convertedScene, pose, i)
			if err != nil {
				return err
			}
			frames[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	metrics := aggregate(frames, elapsed)

	passed := metrics.FramesRendered > 0 &&
		float64(metrics.FramesPassed)/float64(metrics.FramesRendered) >= contract.MinFramesPassedRatio

	var convertedHash string
	if len(frames) > 0 {
		convertedHash = frames[0].ConvertedHash
	}

	return &Report{
		Passed:        passed,
		Score:         metrics.AvgSSIM,
		Frames:        frames,
		Metrics:       metrics,
		GeneratedAt:   time.Now(),
		Mode:          e.mode,
		RendererInfo:  opts.RendererInfo,
		ConvertedHash: convertedHash,
	}, nil
}

func (e *Engine) scoreFrame(ctx context.Context, sourceScene, convertedScene render.SceneHandle, pose contract.CameraPose, index int) (FrameResult, error) {
	var srcImg, dstImg []byte

	// Render both scenes for this pose in parallel (per spec.md §9:
	// fan out render, then fan out the per-frame analyses).
	rg, rCtx := errgroup.WithContext(ctx)
	rg.Go(func() error {
		img, err := e.renderer.Render(rCtx, sourceScene, pose, index)
		if err != nil {
			return err
		}
		srcImg = img
		return nil
	})
	rg.Go(func() error {
		img, err := e.renderer.Render(rCtx, convertedScene, pose, index)
		if err != nil {
			return err
		}
		dstImg = img
		return nil
	})
	if err := rg.Wait(); err != nil {
		return FrameResult{}, err
	}

	var score float64
	var dist int
	var dstHash string

	ag, _ := errgroup.WithContext(ctx)
	ag.Go(func() error {
		s, err := ssim.Compare(srcImg, dstImg)
		if err != nil {
			return err
		}
		score = s
		return nil
	})
	ag.Go(func() error {
		srcHash, err := phash.Hash(srcImg)
		if err != nil {
			return err
		}
		h, err := phash.Hash(dstImg)
		if err != nil {
			return err
		}
		dstHash = h
		d, err := phash.Distance(srcHash, dstHash)
		if err != nil {
			return err
		}
		dist = d
		return nil
	})
	if err := ag.Wait(); err != nil {
		return FrameResult{}, pipelineerr.Validation("qa_frame_analysis_failed", err.Error())
	}

	return FrameResult{
		Index:         index,
		Pose:          pose,
		SSIM:          score,
		PHashDistance: dist,
		Passed:        score >= contract.MinSSIM && dist <= contract.MaxPHashDistance,
		ConvertedHash: dstHash,
	}, nil
}

func aggregate(frames []FrameResult, elapsed time.Duration) Metrics {
	m := Metrics{RenderElapsed: elapsed, FramesRendered: len(frames)}
	if len(frames) == 0 {
		return m
	}

	m.MinSSIM = frames[0].SSIM
	m.MaxSSIM = frames[0].SSIM

	var sumSSIM, sumDist float64
	for _, f := range frames {
		sumSSIM += f.SSIM
		sumDist += float64(f.PHashDistance)
		if f.SSIM < m.MinSSIM {
			m.MinSSIM = f.SSIM
		}
		if f.SSIM > m.MaxSSIM {
			m.MaxSSIM = f.SSIM
		}
		if f.Passed {
			m.FramesPassed++
		}
	}
	m.AvgSSIM = sumSSIM / float64(len(frames))
	m.AvgPHashDistance = sumDist / float64(len(frames))
	return m
}
