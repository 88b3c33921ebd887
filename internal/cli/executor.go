package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"behaviorgen/internal/config"
	"behaviorgen/internal/ident"
	"behaviorgen/internal/pipeline"
	"behaviorgen/internal/trace"
)

// Result carries the semantic exit code and the pipeline outcome.
type Result struct {
	ExitCode int
	Run      *pipeline.Result

	// TraceHash is the hash of the canonical trace encoding, set only when
	// tracing is enabled and the trace was written.
	TraceHash string
}

// Execute maps a canonical Invocation to one generation run.
//
// Responsibilities:
//   - Resolve configuration (defaults -> file -> invocation overrides).
//   - Select cache strategy based on ExecutionMode.
//   - Write the generation trace after execution when requested.
//   - Translate pipeline outcomes to semantic exit codes.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	res := Result{ExitCode: ExitInternalError}

	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	if inv.OutputDir != "" {
		cfg.OutputDir = inv.OutputDir
	}
	if inv.CacheDir != "" {
		cfg.CacheDir = inv.CacheDir
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger = logger.With("run_id", uuid.NewString())

	cacheDir := cfg.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(inv.WorkDir, cacheDir)
	}
	if inv.ExecutionMode == ExecutionModeClean {
		if err := os.RemoveAll(cacheDir); err != nil {
			res.ExitCode = ExitConfigError
			return res, fmt.Errorf("clearing cache dir: %w", err)
		}
	}

	recorder := trace.NewRecorder()
	var sink trace.Sink = trace.NopSink{}
	if inv.Trace.Enabled {
		sink = recorder
	}

	gen, err := pipeline.NewGenerator(cfg, inv.WorkDir, pipeline.NewFileCache(cacheDir), sink, logger)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	runRes, runErr := gen.Run(ctx)
	res.Run = runRes

	if inv.Trace.Enabled {
		traceHash, traceErr := writeTrace(inv.Trace.Path, recorder, cfg.Fingerprint())
		if traceErr != nil {
			logger.Error("writing trace failed", "error", traceErr)
			if runErr == nil {
				res.ExitCode = ExitInternalError
				return res, traceErr
			}
		} else {
			res.TraceHash = traceHash
			logger.Info("trace written", "path", inv.Trace.Path, "trace_hash", traceHash)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, ident.ErrDuplicateEventName) {
			res.ExitCode = ExitGenerationFailure
		} else {
			res.ExitCode = ExitInternalError
		}
		return res, runErr
	}

	logger.Info("generation complete",
		"artifacts", runRes.Artifacts,
		"extracted", runRes.Extracted,
		"from_cache", runRes.FromCache,
		"skipped", runRes.Skipped,
		"failed", runRes.Failed,
		"emitted", runRes.Emitted,
		"unchanged", runRes.Unchanged)

	res.ExitCode = ExitSuccess
	return res, nil
}

// writeTrace encodes and writes the canonical trace, returning the hash of
// the written bytes so callers can report the run's trace identity.
func writeTrace(path string, recorder *trace.Recorder, configHash string) (string, error) {
	tr := recorder.Trace(configHash)
	data, err := tr.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating trace dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing trace: %w", err)
	}
	return trace.ComputeTraceHash(data), nil
}
