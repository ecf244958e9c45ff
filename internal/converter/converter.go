// Package converter drives the external splat-transform process:
// resolves a binary path once at startup, launches it with pinned
// arguments and a deterministic seed, and reports stdout/stderr/exit.
// A mock mode, gated the same way internal/render gates its mock
// renderer, bypasses the subprocess entirely and writes a
// SOG-header-compliant file directly, so the pipeline is exercisable
// end-to-end without a real splat-transform install.
package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/toursvc/conversion-pipeline/internal/contract"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// BinaryMode describes how the converter binary was resolved.
type BinaryMode string

const (
	ModeLocal         BinaryMode = "local"
	ModePackageRunner BinaryMode = "package_runner"
)

// Mode selects whether Run launches the real splat-transform process or
// synthesizes a deterministic SOG file in-process. Read once at startup
// from SPLAT_CONVERTER_MODE, mirroring render.Mode/ModeFromEnv.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeReal Mode = "real"
)

// ModeFromEnv reads SPLAT_CONVERTER_MODE, defaulting to mock.
func ModeFromEnv() Mode {
	switch os.Getenv("SPLAT_CONVERTER_MODE") {
	case "real":
		return ModeReal
	default:
		return ModeMock
	}
}

// Resolution is the cached result of probing for the converter binary.
type Resolution struct {
	Mode BinaryMode
	Path string
}

// RunInput describes one converter invocation.
type RunInput struct {
	InputPath  string
	OutputPath string
	Iterations uint32
	Format     string
	Verbose    bool
}

// RunResult reports the outcome of a converter invocation.
type RunResult struct {
	OK         bool
	ExitCode   int
	Stdout     string
	Stderr     string
	Elapsed    time.Duration
	BinaryMode BinaryMode
	BinaryPath string
}

// wellKnownLocalPaths are probed, in order, for a local splat-transform
// install before falling back to a package runner.
var wellKnownLocalPaths = []string{
	"/usr/local/bin/splat-transform",
	"/usr/bin/splat-transform",
	"./bin/splat-transform",
}

// packageRunner and packageName back the fallback invocation
// "<runner> <package>" when no local binary is found.
const (
	packageRunner = "npx"
	packageName   = "@splat/transform-cli"
)

// Driver resolves the converter binary once and launches it per job.
type Driver struct {
	once       sync.Once
	resolution Resolution
	logger     *slog.Logger
	mode       Mode
}

// NewDriver creates a Driver for mode. Binary resolution happens lazily
// on first Run, cached thereafter (spec.md §5: "Converter-binary
// resolution cache: one-shot initialization") — resolution still runs
// in mock mode, so provenance records the same binaryMode/binaryPath a
// real invocation would have used.
func NewDriver(mode Mode, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger, mode: mode}
}

// Resolve probes well-known local install locations for the converter
// binary, falling back to a package-runner invocation with a logged
// warning. Safe to call concurrently; resolution runs exactly once.
func (d *Driver) Resolve() Resolution {
	d.once.Do(func() {
		if override := os.Getenv("SPLAT_CONVERTER_BIN"); override != "" {
			if path, err := exec.LookPath(override); err == nil {
				d.resolution = Resolution{Mode: ModeLocal, Path: path}
				return
			}
		}
		for _, candidate := range wellKnownLocalPaths {
			if path, err := exec.LookPath(candidate); err == nil {
				d.resolution = Resolution{Mode: ModeLocal, Path: path}
				return
			}
		}
		d.logger.Warn("splat-transform binary not found locally, falling back to package runner",
			"runner", packageRunner, "package", packageName)
		d.resolution = Resolution{
			Mode: ModePackageRunner,
			Path: fmt.Sprintf("%s %s", packageRunner, packageName),
		}
	})
	return d.resolution
}

// Run launches the converter against in. It creates the output
// directory before invocation, always sets SPLAT_SEED for determinism,
// and applies no internal timeout — the caller supplies ctx's deadline.
func (d *Driver) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if _, err := os.Stat(in.InputPath); err != nil {
		return nil, pipelineerr.IO("converter_input_missing", "converter input file does not exist", err)
	}
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0o755); err != nil {
		return nil, pipelineerr.IO("converter_output_dir_failed", "failed to create converter output directory", err)
	}

	res := d.Resolve()

	if d.mode == ModeMock {
		return d.runMock(in, res)
	}

	args := []string{in.InputPath, "-o", in.OutputPath, "-i", fmt.Sprint(in.Iterations), "--format", in.Format}
	if in.Verbose {
		args = append(args, "--verbose")
	}

	name, baseArgs := commandFor(res)
	fullArgs := append(append([]string{}, baseArgs...), args...)

	cmd := exec.CommandContext(ctx, name, fullArgs...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", contract.SplatSeedEnvVar, contract.SplatSeedValue))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			// A signal-terminated process reports -1; use the shell
			// convention 128+signal so ClassifyExit can see the signal.
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				exitCode = 128 + int(ws.Signal())
			}
		} else {
			return nil, pipelineerr.IO("converter_exec_failed", "failed to execute converter process", err)
		}
	}

	return &RunResult{
		OK:         exitCode == 0,
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Elapsed:    elapsed,
		BinaryMode: res.Mode,
		BinaryPath: res.Path,
	}, nil
}

// runMock synthesizes a SOG file bit-compatible with spec.md's header
// recognition contract without shelling out: magic, version, a gaussian
// count derived from in.Iterations (the pipeline never parses past the
// magic, so any deterministic value is valid here), and a reserved word.
func (d *Driver) runMock(in RunInput, res Resolution) (*RunResult, error) {
	start := time.Now()

	header := make([]byte, contract.SOGHeaderSize)
	copy(header[0:4], contract.SOGMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], contract.SOGVersion)
	binary.LittleEndian.PutUint32(header[8:12], in.Iterations)
	// header[12:16] reserved, left zero.

	if err := os.WriteFile(in.OutputPath, header, 0o644); err != nil {
		return nil, pipelineerr.IO("converter_mock_write_failed", "failed to write mock SOG output", err)
	}

	return &RunResult{
		OK:         true,
		ExitCode:   0,
		Stdout:     "mock converter: wrote deterministic SOG header\n",
		Elapsed:    time.Since(start),
		BinaryMode: res.Mode,
		BinaryPath: res.Path,
	}, nil
}

func commandFor(res Resolution) (name string, args []string) {
	if res.Mode == ModeLocal {
		return res.Path, nil
	}
	return packageRunner, []string{packageName}
}

// ClassifyExit reports whether a non-zero converter exit should be
// treated as retryable. Exit codes associated with OOM kills or process
// crashes (137 = 128+SIGKILL, 139 = 128+SIGSEGV; Run reports a process
// killed by a signal as 128+signal) are retryable; any other non-zero exit is treated as a permanent,
// deterministic failure of the given input. This mapping is a
// deliberate, narrow implementation choice — see DESIGN.md.
func ClassifyExit(exitCode int) bool {
	switch exitCode {
	case 128 + int(syscall.SIGKILL), 128 + int(syscall.SIGSEGV):
		return true
	default:
		return false
	}
}
