package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"simflow/internal/logger"
)

// ErrInputNotFound is returned when the model or weather file does not exist.
var ErrInputNotFound = errors.New("simulation input not found")

const tailLines = 20

// RunError is a failed EnergyPlus invocation.
type RunError struct {
	Timeout    bool
	ReturnCode int
	After      time.Duration
	// Tail is the end of eplusout.err, or of the process output when the
	// error file was never written.
	Tail string
}

func (e *RunError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("simulation timed out after %s", e.After)
	}
	if e.Tail == "" {
		return fmt.Sprintf("energyplus exited with code %d", e.ReturnCode)
	}
	return fmt.Sprintf("energyplus exited with code %d: %s", e.ReturnCode, e.Tail)
}

type RunnerConfig struct {
	Executable       string
	IDDPath          string
	OutputDir        string
	DesignDayTimeout time.Duration
	AnnualTimeout    time.Duration
}

type RunRequest struct {
	IDFPath         string
	WeatherFile     string
	OutputDirectory string
	Annual          bool
	DesignDay       bool
	ReadVars        bool
	ExpandObjects   bool
	// Timeout of zero selects the configured default for the run kind.
	Timeout time.Duration
}

type RunResult struct {
	OutputDirectory string
	Duration        time.Duration
	ReturnCode      int
	Files           []string
}

// Runner executes the EnergyPlus command line.
type Runner struct {
	cfg    RunnerConfig
	logger logger.Logger
	now    func() time.Time
}

func NewRunner(cfg RunnerConfig, log logger.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: log.With(logger.String("component", "simulation_runner")),
		now:    time.Now,
	}
}

// Available reports whether the configured executable can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.cfg.Executable)
	return err == nil
}

func (r *Runner) ExecutablePath() string {
	return r.cfg.Executable
}

func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	for _, p := range []string{req.IDFPath, req.WeatherFile} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, p)
		}
	}

	outDir := req.OutputDirectory
	if outDir == "" {
		stem := strings.TrimSuffix(filepath.Base(req.IDFPath), filepath.Ext(req.IDFPath))
		outDir = filepath.Join(r.cfg.OutputDir, "simulations", fmt.Sprintf("%s_%s", stem, r.now().Format("20060102_150405")))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DesignDayTimeout
		if req.Annual {
			timeout = r.cfg.AnnualTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := r.args(req, outDir)
	cmd := exec.CommandContext(runCtx, r.cfg.Executable, args...)
	cmd.WaitDelay = 5 * time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Info("starting simulation",
		logger.String("idf", req.IDFPath),
		logger.String("output_directory", outDir),
		logger.Duration("timeout", timeout))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("simulation timed out", logger.String("idf", req.IDFPath), logger.Duration("timeout", timeout))
		return nil, &RunError{Timeout: true, ReturnCode: -1, After: timeout, Tail: r.failureTail(outDir, output.String())}
	}
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else if output.Len() == 0 {
			output.WriteString(err.Error())
		}
		r.logger.Error("simulation failed", logger.String("idf", req.IDFPath), logger.Int("return_code", code))
		return nil, &RunError{ReturnCode: code, Tail: r.failureTail(outDir, output.String())}
	}

	files, err := listFiles(outDir)
	if err != nil {
		return nil, err
	}

	r.logger.Info("simulation finished",
		logger.String("output_directory", outDir),
		logger.Duration("duration", elapsed),
		logger.Int("files", len(files)))

	return &RunResult{
		OutputDirectory: outDir,
		Duration:        elapsed,
		ReturnCode:      0,
		Files:           files,
	}, nil
}

func (r *Runner) args(req RunRequest, outDir string) []string {
	args := []string{"-w", req.WeatherFile, "-d", outDir}
	if r.cfg.IDDPath != "" {
		args = append(args, "-i", r.cfg.IDDPath)
	}
	if req.ReadVars {
		args = append(args, "-r")
	}
	if req.ExpandObjects {
		args = append(args, "-x")
	}
	switch {
	case req.Annual:
		args = append(args, "-a")
	case req.DesignDay:
		args = append(args, "-D")
	}
	return append(args, req.IDFPath)
}

func (r *Runner) failureTail(outDir, output string) string {
	if data, err := os.ReadFile(filepath.Join(outDir, "eplusout.err")); err == nil && len(data) > 0 {
		return tail(string(data), tailLines)
	}
	return tail(output, tailLines)
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
