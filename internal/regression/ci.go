package regression

import (
	"fmt"
	"io"
	"strings"
)

// Report renders a Check as a single block of structured key/value
// lines, the format the CI entry point prints to stdout.
func Report(c Check) string {
	var b strings.Builder
	fmt.Fprintf(&b, "asset_id=%s\n", c.AssetID)
	fmt.Fprintf(&b, "has_baseline=%t\n", c.HasBaseline)
	fmt.Fprintf(&b, "score_delta=%.4f\n", c.ScoreDelta)
	if c.PHashDistanceValid {
		fmt.Fprintf(&b, "phash_distance=%d\n", c.PHashDistance)
	} else {
		fmt.Fprintf(&b, "phash_distance=n/a\n")
	}
	fmt.Fprintf(&b, "score_regression=%t\n", c.ScoreRegression)
	fmt.Fprintf(&b, "phash_regression=%t\n", c.PHashRegression)
	fmt.Fprintf(&b, "below_floor=%t\n", c.BelowFloor)
	fmt.Fprintf(&b, "regression_detected=%t\n", c.RegressionDetected)
	fmt.Fprintf(&b, "severity=%s\n", c.Severity)
	fmt.Fprintf(&b, "recommendation=%s\n", c.Recommendation)
	return b.String()
}

// WriteReport writes Report(c) to w.
func WriteReport(w io.Writer, c Check) error {
	_, err := io.WriteString(w, Report(c))
	return err
}

// ExitCode returns the CI exit code for a Check: 0 on pass, 1 on fail.
func ExitCode(c Check) int {
	if c.RegressionDetected {
		return 1
	}
	return 0
}
