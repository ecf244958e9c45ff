package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursvc/conversion-pipeline/internal/blobstore"
	"github.com/toursvc/conversion-pipeline/internal/converter"
	"github.com/toursvc/conversion-pipeline/internal/provenance"
	"github.com/toursvc/conversion-pipeline/internal/qa"
	"github.com/toursvc/conversion-pipeline/internal/regression"
	"github.com/toursvc/conversion-pipeline/internal/render"
)

func writeFakeConverter(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell binary only supported on unix")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "splat-transform")
	script := "#!/bin/sh\n" +
		"OUT=$3\n" +
		"echo converted > \"$OUT\"\n" +
		"exit " + itoaTest(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}

// newTestService wires a Service around the real deterministic mock
// converter (converter.ModeMock), which writes SOG-header-compliant
// output without shelling out — the default for success/QA-path tests.
func newTestService(t *testing.T, blobs blobstore.BlobStore) *Service {
	t.Helper()
	return NewService(
		blobs,
		converter.NewDriver(converter.ModeMock, nil),
		qa.NewEngine(render.ModeMock),
		provenance.NewLedger(nil, nil),
		regression.NewHarness(regression.Thresholds{}),
		t.TempDir(),
		nil,
	)
}

// newTestServiceRealConverter wires a Service around converter.ModeReal
// backed by a fake shell binary, for exercising the real exec/exit-code
// classification path (e.g. a converter that fails).
func newTestServiceRealConverter(t *testing.T, converterExitCode int, blobs blobstore.BlobStore) *Service {
	t.Helper()
	bin := writeFakeConverter(t, converterExitCode)
	t.Setenv("SPLAT_CONVERTER_BIN", bin)

	return NewService(
		blobs,
		converter.NewDriver(converter.ModeReal, nil),
		qa.NewEngine(render.ModeMock),
		provenance.NewLedger(nil, nil),
		regression.NewHarness(regression.Thresholds{}),
		t.TempDir(),
		nil,
	)
}

func TestService_Run_Success(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	blobs.Seed("tours/us/asset-1/source.ply", []byte("Hello, World!"))

	svc := newTestService(t, blobs)
	job := NewJob("asset-1", "tours/us/asset-1/source.ply", "us")
	job.QualityThreshold = 0 // mock renderer compares a scene against itself; keep threshold permissive

	result, err := svc.Run(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986", result.SourceDigest)
	assert.NotEmpty(t, result.OutputDigest)
	assert.Equal(t, blobstore.OutputKey("us", "asset-1"), result.OutputKey)
	require.NotNil(t, result.QA)
	assert.True(t, result.QA.Passed)

	localPath, err := blobs.Get(context.Background(), result.OutputKey, t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 8)
	assert.Equal(t, []byte{0x53, 0x4F, 0x47, 0x00, 0x01, 0x00, 0x00, 0x00}, data[:8])
}

func TestService_Run_MissingSourceIsIOFailed(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	svc := newTestService(t, blobs)
	job := NewJob("asset-missing", "tours/us/asset-missing/source.ply", "us")

	result, err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, StatusIOFailed, result.Status)
	require.NotNil(t, result.Err)
	assert.True(t, result.Err.Retryable)
}

func TestService_Run_ConverterFailureIsConvertFailed(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	blobs.Seed("tours/us/asset-2/source.ply", []byte("data"))

	svc := newTestServiceRealConverter(t, 1, blobs)
	job := NewJob("asset-2", "tours/us/asset-2/source.ply", "us")

	result, err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, StatusConvertFailed, result.Status)
}

func TestService_Run_QAFailedIsNonRetryable(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	blobs.Seed("tours/us/asset-3/source.ply", []byte("data"))

	svc := newTestService(t, blobs)
	job := NewJob("asset-3", "tours/us/asset-3/source.ply", "us")
	job.QualityThreshold = 1.1 // impossible to meet, forces QAFailed

	result, err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, StatusQAFailed, result.Status)
	require.NotNil(t, result.Err)
	assert.False(t, result.Err.Retryable)
}
