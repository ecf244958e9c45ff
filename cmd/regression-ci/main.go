// Command regression-ci is the CI entry point for the regression
// harness: it renders and scores the source and converted scenes for
// one asset, compares the result against a stored baseline, prints a
// fixed-format report to stdout, and exits 0 on pass / 1 on fail, per
// spec.md §6's CI regression invocation contract.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/toursvc/conversion-pipeline/internal/qa"
	"github.com/toursvc/conversion-pipeline/internal/regression"
	"github.com/toursvc/conversion-pipeline/internal/render"
)

func main() {
	var (
		assetID          = flag.String("asset-id", "", "asset identifier (required)")
		sourcePath       = flag.String("source", "", "path to the source scene used for QA rendering (required)")
		outputPath       = flag.String("output", "", "path to the converted scene used for QA rendering (required)")
		converterVersion = flag.String("converter-version", "", "converter version that produced output (required)")
		baselineFile     = flag.String("baseline-file", "", "optional JSON bundle of regression.Baseline records")
		rendererMode     = flag.String("renderer-mode", "mock", "QA renderer mode: mock | real")
	)
	flag.Parse()

	if *assetID == "" || *sourcePath == "" || *outputPath == "" || *converterVersion == "" {
		fmt.Fprintln(os.Stderr, "usage: regression-ci -asset-id ID -source PATH -output PATH -converter-version V [-baseline-file FILE]")
		os.Exit(2)
	}

	harness := regression.NewHarness(regression.Thresholds{})
	if *baselineFile != "" {
		baselines, err := loadBaselines(*baselineFile)
		if err != nil {
			log.Fatalf("failed to load baseline file: %v", err)
		}
		harness.LoadBundle(baselines)
	}

	engine := qa.NewEngine(render.Mode(*rendererMode))
	report, err := engine.Run(context.Background(), render.SceneHandle(*sourcePath), render.SceneHandle(*outputPath), qa.Options{})
	if err != nil {
		log.Fatalf("QA run failed: %v", err)
	}

	check := harness.Check(*assetID, report.Score, *converterVersion, report.ConvertedHash)
	regression.WriteReport(os.Stdout, check)
	os.Exit(regression.ExitCode(check))
}

func loadBaselines(path string) ([]regression.Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var baselines []regression.Baseline
	if err := json.Unmarshal(data, &baselines); err != nil {
		return nil, err
	}
	return baselines, nil
}
