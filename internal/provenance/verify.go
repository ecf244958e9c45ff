package provenance

import (
	"time"

	"github.com/toursvc/conversion-pipeline/internal/digest"
)

// AssetProvenance is the assembled view of everything recorded about one
// asset, used to check that a conversion's paper trail is complete
// before the asset is considered published.
type AssetProvenance struct {
	SourceKey        string
	SourceDigest     string
	SourceSize       int64
	OutputKey        string
	OutputDigest     string
	ConverterVersion string
	QAScore          float64
	QAScorePresent   bool
	UploaderID       string
	UploadedAt       time.Time
}

// VerifyResult is the outcome of checking an AssetProvenance for
// completeness.
type VerifyResult struct {
	Valid         bool
	MissingFields []string
	Warnings      []string
	Checks        map[string]bool
}

// Verify checks p for the fields required to consider its provenance
// trail complete. Missing required fields make the result invalid;
// missing optional fields are reported as warnings only.
func Verify(p AssetProvenance) VerifyResult {
	res := VerifyResult{
		Valid:  true,
		Checks: make(map[string]bool),
	}

	require := func(name string, ok bool) {
		res.Checks[name] = ok
		if !ok {
			res.Valid = false
			res.MissingFields = append(res.MissingFields, name)
		}
	}
	warnIfMissing := func(name string, ok bool) {
		res.Checks[name] = ok
		if !ok {
			res.Warnings = append(res.Warnings, name+" is missing")
		}
	}

	require("sourceKey", p.SourceKey != "")
	require("sourceDigest", p.SourceDigest != "")
	require("sourceSize", p.SourceSize > 0)

	hasOutput := p.OutputKey != ""
	if hasOutput {
		require("outputDigest", p.OutputDigest != "")
		warnIfMissing("converterVersion", p.ConverterVersion != "")
		warnIfMissing("qaScore", p.QAScorePresent)
	}

	warnIfMissing("uploaderId", p.UploaderID != "")
	warnIfMissing("uploadedAt", !p.UploadedAt.IsZero())

	return res
}

// IntegrityCheck is the outcome of re-hashing a file on disk and
// comparing it against an expected digest recorded earlier.
type IntegrityCheck struct {
	Valid         bool
	ChecksumMatch bool
	Expected      string
	Actual        string
	Error         string
}

// VerifyIntegrity re-hashes the file at path and compares it against
// expectedDigest, emitting an integrity_check record to ledger
// regardless of outcome. assetID identifies the asset the file belongs
// to for the emitted record.
func VerifyIntegrity(ledger *Ledger, assetID, fileType, path, expectedDigest string) IntegrityCheck {
	actual, _, err := digest.Digest(path)
	if err != nil {
		check := IntegrityCheck{
			Valid: false,
			Error: err.Error(),
		}
		if ledger != nil {
			ledger.IntegrityCheck(assetID, IntegrityCheckDetails{
				FileType:       fileType,
				ExpectedDigest: expectedDigest,
				ChecksumMatch:  false,
				Error:          err.Error(),
			})
		}
		return check
	}

	match := actual == expectedDigest
	check := IntegrityCheck{
		Valid:         match,
		ChecksumMatch: match,
		Expected:      expectedDigest,
		Actual:        actual,
	}
	if ledger != nil {
		ledger.IntegrityCheck(assetID, IntegrityCheckDetails{
			FileType:       fileType,
			ExpectedDigest: expectedDigest,
			ActualDigest:   actual,
			ChecksumMatch:  match,
		})
	}
	return check
}
