// Package pipeline orchestrates one conversion job end to end: stage
// the input, hash it, run the converter, hash the output, run QA,
// publish the output, emit provenance, and clean up. See
// Service.Run for the full state machine.
package pipeline

import (
	"github.com/toursvc/conversion-pipeline/internal/contract"
)

// Status is one state in a job's lifecycle.
type Status string

const (
	StatusStaged         Status = "staged"
	StatusHashed         Status = "hashed"
	StatusConverted      Status = "converted"
	StatusHashedOut      Status = "hashed_out"
	StatusQADone         Status = "qa_done"
	StatusPublished      Status = "published"
	StatusDone           Status = "done"
	StatusIOFailed       Status = "io_failed"
	StatusConvertFailed  Status = "convert_failed"
	StatusQAFailed       Status = "qa_failed"
)

// Job describes one conversion request.
type Job struct {
	ID               string
	AssetID          string
	SourceKey        string
	Market           string
	Iterations       uint32
	QualityThreshold float64
}

// NewJob builds a Job with the default iterations and quality threshold.
// Its ID is always "tour-"+assetID, which the queue uses as its dedup
// key.
func NewJob(assetID, sourceKey, market string) Job {
	j := Job{
		ID:               "tour-" + assetID,
		AssetID:          assetID,
		SourceKey:        sourceKey,
		Market:           market,
		Iterations:       contract.DefaultIterations,
		QualityThreshold: contract.DefaultQualityThreshold,
	}
	return j
}
