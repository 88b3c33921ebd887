package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitGenerationFailure = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

type ExecutionMode string

const (
	// ExecutionModeClean discards the extraction cache before running.
	ExecutionModeClean ExecutionMode = "clean"

	// ExecutionModeIncremental reuses cached extractions for unchanged
	// artifacts.
	ExecutionModeIncremental ExecutionMode = "incremental"
)

type TraceConfig struct {
	Enabled bool
	Path    string
}

// Invocation is the fully canonicalized, deterministic description of a run.
//
// All paths are normalized (Clean) and all relative paths are resolved
// relative to WorkDir.
//
// NOTE: WorkDir is required and must be absolute; this prevents any
// dependency on the process current working directory.
type Invocation struct {
	WorkDir       string
	ConfigPath    string
	OutputDir     string
	CacheDir      string
	ExecutionMode ExecutionMode
	Trace         TraceConfig

	OriginalConfig string
	OriginalOutput string
	OriginalCache  string
	OriginalTrace  string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation.
//
// Determinism goals:
//   - Does not read env vars.
//   - Does not read/assume the process CWD.
//   - Requires WorkDir to be explicit and absolute.
//
// Output and cache directories are optional here; when absent, the values
// from the resolved configuration apply.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("behaviorgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var workDir string
	var configPath string
	var outputDir string
	var cacheDir string
	var tracePath string
	var mode string

	fs.StringVar(&workDir, "workdir", "", "Absolute working directory. Required.")
	fs.StringVar(&configPath, "config", "", "Generator config file (optional).")
	fs.StringVar(&outputDir, "output-dir", "", "Output directory override (optional).")
	fs.StringVar(&cacheDir, "cache-dir", "", "Cache directory override (optional).")
	fs.StringVar(&tracePath, "trace", "", "Trace output path (optional).")
	fs.StringVar(&mode, "mode", string(ExecutionModeIncremental), "Execution mode: clean|incremental")

	// We intentionally do not accept environment-derived defaults.
	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	workDir = filepath.Clean(workDir)
	if workDir == "" || workDir == "." {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}

	parsedMode, err := parseExecutionMode(mode)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		WorkDir:        workDir,
		ExecutionMode:  parsedMode,
		OriginalConfig: configPath,
		OriginalOutput: outputDir,
		OriginalCache:  cacheDir,
		OriginalTrace:  tracePath,
	}

	if strings.TrimSpace(configPath) != "" {
		resolved, err := resolveUnderWorkDir(workDir, configPath)
		if err != nil {
			return Invocation{}, err
		}
		inv.ConfigPath = resolved
	}
	if strings.TrimSpace(outputDir) != "" {
		resolved, err := resolveUnderWorkDir(workDir, outputDir)
		if err != nil {
			return Invocation{}, err
		}
		inv.OutputDir = resolved
	}
	if strings.TrimSpace(cacheDir) != "" {
		resolved, err := resolveUnderWorkDir(workDir, cacheDir)
		if err != nil {
			return Invocation{}, err
		}
		inv.CacheDir = resolved
	}
	if strings.TrimSpace(tracePath) != "" {
		resolved, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return Invocation{}, err
		}
		inv.Trace = TraceConfig{Enabled: true, Path: resolved}
	}

	return inv, nil
}

func parseExecutionMode(raw string) (ExecutionMode, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	switch ExecutionMode(n) {
	case ExecutionModeClean, ExecutionModeIncremental:
		return ExecutionMode(n), nil
	case "":
		return "", invalidInvocationf("--mode is required")
	default:
		return "", invalidInvocationf("invalid --mode %q (expected clean|incremental)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}

	// If absolute, accept as-is; it is still deterministic.
	// If relative, resolve under WorkDir.
	if filepath.IsAbs(clean) {
		return clean, nil
	}

	// WorkDir is required to be absolute, so Join does not consult process CWD.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCodeFor extracts a semantic exit code from an error. Unknown errors
// map to ExitInternalError.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
