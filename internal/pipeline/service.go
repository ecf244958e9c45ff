package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/toursvc/conversion-pipeline/internal/blobstore"
	"github.com/toursvc/conversion-pipeline/internal/converter"
	"github.com/toursvc/conversion-pipeline/internal/digest"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
	"github.com/toursvc/conversion-pipeline/internal/provenance"
	"github.com/toursvc/conversion-pipeline/internal/qa"
	"github.com/toursvc/conversion-pipeline/internal/regression"
	"github.com/toursvc/conversion-pipeline/internal/render"
)

var tracer = otel.Tracer("github.com/toursvc/conversion-pipeline/internal/pipeline")

// ConverterVersion is stamped into every conversion record. It has no
// bearing on the converter binary's own version reporting (the driver
// doesn't parse one); it identifies this orchestration layer.
const ConverterVersion = "tour-conversion-pipeline/1"

// Service orchestrates one job end to end (spec.md §4.11's state
// machine): stage, hash, convert, hash, QA, publish, emit provenance,
// clean up.
type Service struct {
	Blobs      blobstore.BlobStore
	Converter  *converter.Driver
	QA         *qa.Engine
	Ledger     *provenance.Ledger
	Regression *regression.Harness
	WorkDir    string
	Logger     *slog.Logger
}

// NewService wires a Service from its dependencies. workDir is the
// parent directory under which each job gets its own scratch
// subdirectory; empty defaults to os.TempDir().
func NewService(blobs blobstore.BlobStore, conv *converter.Driver, qaEngine *qa.Engine, ledger *provenance.Ledger, reg *regression.Harness, workDir string, logger *slog.Logger) *Service {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Blobs:      blobs,
		Converter:  conv,
		QA:         qaEngine,
		Ledger:     ledger,
		Regression: reg,
		WorkDir:    workDir,
		Logger:     logger,
	}
}

// Run drives job through every step of the state machine, always
// returning a Result populated with whatever measurements completed
// before any failure.
func (s *Service) Run(ctx context.Context, job Job) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("asset_id", job.AssetID),
		attribute.String("market", job.Market),
	))
	defer span.End()

	started := time.Now()
	result := &Result{
		Status:           StatusStaged,
		Iterations:       job.Iterations,
		ConverterVersion: ConverterVersion,
		Provenance: ResultProvenance{
			QAMode:      s.QA.Mode(),
			Environment: runtime.GOOS + "/" + runtime.GOARCH,
			StartedAt:   started,
		},
	}

	jobDir, err := os.MkdirTemp(s.WorkDir, "job-*")
	if err != nil {
		return s.fail(result, StatusIOFailed, pipelineerr.IO("jobdir_create_failed", "failed to create job working directory", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(jobDir); rmErr != nil {
			s.Logger.Warn("failed to clean up job working directory", "dir", jobDir, "error", rmErr)
		}
	}()

	inputPath := filepath.Join(jobDir, "input.ply")
	outputPath := filepath.Join(jobDir, "output.sog")

	// Step 2: stage the source.
	if _, err := s.getStep(ctx, job, inputPath); err != nil {
		return s.fail(result, StatusIOFailed, err)
	}
	result.Status = StatusStaged

	// Step 3: hash the staged input.
	sourceDigest, sourceSize, err := digest.Digest(inputPath)
	if err != nil {
		s.emitIntegrityCheck(job, "source", "", false, err)
		return s.fail(result, StatusIOFailed, err.(*pipelineerr.Error))
	}
	s.emitIntegrityCheck(job, "source", sourceDigest, true, nil)
	result.SourceDigest = sourceDigest
	result.SourceSize = sourceSize
	result.Status = StatusHashed

	// Step 4: run the converter.
	runRes, err := s.convertStep(ctx, job, inputPath, outputPath)
	if err != nil {
		result.Err = toPipelineErr(err)
		return s.fail(result, StatusConvertFailed, result.Err)
	}
	result.Provenance.BinaryMode = runRes.BinaryMode
	result.Provenance.BinaryPath = runRes.BinaryPath
	result.Status = StatusConverted

	// Step 5: hash the converter output.
	outputDigest, outputSize, err := digest.Digest(outputPath)
	if err != nil {
		s.emitIntegrityCheck(job, "output", "", false, err)
		return s.fail(result, StatusIOFailed, err.(*pipelineerr.Error))
	}
	s.emitIntegrityCheck(job, "output", outputDigest, true, nil)
	result.OutputDigest = outputDigest
	result.OutputSize = outputSize
	result.Status = StatusHashedOut

	s.Ledger.Conversion(job.AssetID, provenance.ConversionDetails{
		OutputKey:        blobstore.OutputKey(job.Market, job.AssetID),
		OutputDigest:     outputDigest,
		OutputSize:       outputSize,
		ConverterVersion: ConverterVersion,
		Iterations:       job.Iterations,
		Elapsed:          runRes.Elapsed,
	})

	// Step 6: QA.
	report, err := s.QA.Run(ctx, render.SceneHandle(inputPath), render.SceneHandle(outputPath), qa.Options{
		RendererInfo: result.Provenance.Environment,
	})
	if err != nil {
		result.Err = toPipelineErr(err)
		return s.fail(result, StatusQAFailed, result.Err)
	}
	result.QA = report
	result.Status = StatusQADone

	if !report.Passed || report.Score < job.QualityThreshold {
		// Invariant 3: a passed-but-below-threshold report is coerced
		// into a non-retryable failure.
		qaErr := pipelineerr.QAFailed("qa_below_threshold", fmt.Sprintf(
			"QA score %.4f (passed=%t) did not meet threshold %.4f", report.Score, report.Passed, job.QualityThreshold))
		return s.fail(result, StatusQAFailed, qaErr)
	}

	s.Ledger.QAPass(job.AssetID, provenance.QAPassDetails{
		Score:          report.Score,
		FramesPassed:   report.Metrics.FramesPassed,
		FramesRendered: report.Metrics.FramesRendered,
		Mode:           string(report.Mode),
	})

	if s.Regression != nil {
		check := s.Regression.Check(job.AssetID, report.Score, ConverterVersion, report.ConvertedHash)
		if check.RegressionDetected {
			s.Logger.Warn("regression detected on conversion", "asset_id", job.AssetID, "severity", check.Severity, "recommendation", check.Recommendation)
		}
	}

	// Step 7: publish.
	outputKey := blobstore.OutputKey(job.Market, job.AssetID)
	if err := s.Blobs.Put(ctx, outputPath, outputKey); err != nil {
		return s.fail(result, StatusIOFailed, pipelineerr.IO("publish_failed", "failed to publish converted output", err))
	}
	result.OutputKey = outputKey
	result.Status = StatusPublished

	result.OK = true
	result.Status = StatusDone
	result.Elapsed = time.Since(started)
	result.Provenance.CompletedAt = time.Now()
	return result, nil
}

func (s *Service) getStep(ctx context.Context, job Job, destPath string) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.get")
	defer span.End()

	dir := filepath.Dir(destPath)
	localPath, err := s.Blobs.Get(ctx, job.SourceKey, dir)
	if err != nil {
		return "", pipelineerr.IO("source_get_failed", "failed to stage source object", err)
	}
	if localPath != destPath {
		if renameErr := os.Rename(localPath, destPath); renameErr != nil {
			return "", pipelineerr.IO("source_stage_failed", "failed to place staged source at expected path", renameErr)
		}
	}
	return destPath, nil
}

func (s *Service) convertStep(ctx context.Context, job Job, inputPath, outputPath string) (*converter.RunResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.convert")
	defer span.End()

	runRes, err := s.Converter.Run(ctx, converter.RunInput{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Iterations: job.Iterations,
		Format:     "sog",
	})
	if err != nil {
		return nil, err
	}
	if !runRes.OK {
		retryable := converter.ClassifyExit(runRes.ExitCode)
		return nil, pipelineerr.ConverterFailed(retryable, "converter_nonzero_exit",
			fmt.Sprintf("converter exited %d", runRes.ExitCode), fmt.Errorf("stderr: %s", runRes.Stderr))
	}
	return runRes, nil
}

func (s *Service) emitIntegrityCheck(job Job, fileType, actualDigest string, match bool, err error) {
	details := provenance.IntegrityCheckDetails{
		FileType:      fileType,
		ActualDigest:  actualDigest,
		ChecksumMatch: match,
	}
	if err != nil {
		details.Error = err.Error()
	}
	s.Ledger.IntegrityCheck(job.AssetID, details)
}

func (s *Service) fail(result *Result, status Status, err error) (*Result, error) {
	result.Status = status
	result.OK = false
	result.Err = toPipelineErr(err)
	result.Provenance.CompletedAt = time.Now()
	result.Elapsed = time.Since(result.Provenance.StartedAt)
	return result, err
}

func toPipelineErr(err error) *pipelineerr.Error {
	if pe, ok := err.(*pipelineerr.Error); ok {
		return pe
	}
	return pipelineerr.Unexpected("unclassified pipeline failure", err)
}
