package pipeline

import (
	"time"

	"github.com/toursvc/conversion-pipeline/internal/converter"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
	"github.com/toursvc/conversion-pipeline/internal/qa"
	"github.com/toursvc/conversion-pipeline/internal/render"
)

// ResultProvenance records the operational circumstances a result was
// produced under, independent of the provenance ledger.
type ResultProvenance struct {
	QAMode      render.Mode
	BinaryMode  converter.BinaryMode
	BinaryPath  string
	Environment string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Result is always returned from Service.Run, populated with whatever
// measurements completed before any failure.
type Result struct {
	Status           Status
	OK               bool
	SourceDigest     string
	SourceSize       int64
	OutputKey        string
	OutputDigest     string
	OutputSize       int64
	ConverterVersion string
	Iterations       uint32
	Elapsed          time.Duration
	QA               *qa.Report
	Err              *pipelineerr.Error
	Provenance       ResultProvenance
}
