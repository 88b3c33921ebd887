package cli

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseInvocation_DeterministicStruct(t *testing.T) {
	workDir := t.TempDir()
	args := []string{
		"--workdir", workDir,
		"--config", "conf/../behaviorgen.yaml",
		"--cache-dir", "./cache/..//cache",
		"--output-dir", "out/./",
		"--mode", "incremental",
		"--trace", "traces/../trace.json",
	}

	inv1, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv2, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(inv1, inv2) {
		t.Fatalf("expected identical invocations, got\n%#v\n%#v", inv1, inv2)
	}

	if inv1.WorkDir != filepath.Clean(workDir) {
		t.Fatalf("workdir not canonicalized: %q", inv1.WorkDir)
	}
	if inv1.ConfigPath != filepath.Join(workDir, "behaviorgen.yaml") {
		t.Fatalf("config path not resolved/canonicalized: %q", inv1.ConfigPath)
	}
	if inv1.CacheDir != filepath.Join(workDir, "cache") {
		t.Fatalf("cache dir not resolved/canonicalized: %q", inv1.CacheDir)
	}
	if inv1.OutputDir != filepath.Join(workDir, "out") {
		t.Fatalf("output dir not resolved/canonicalized: %q", inv1.OutputDir)
	}
	if !inv1.Trace.Enabled || inv1.Trace.Path != filepath.Join(workDir, "trace.json") {
		t.Fatalf("trace not resolved/canonicalized: %#v", inv1.Trace)
	}
}

func TestParseInvocation_ResolvesRelativePathsAgainstWorkDir_NotCwd(t *testing.T) {
	workDir := t.TempDir()
	otherCwd := t.TempDir()

	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	if err := os.Chdir(otherCwd); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	inv, err := ParseInvocation([]string{
		"--workdir", workDir,
		"--output-dir", "out",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.OutputDir != filepath.Join(workDir, "out") {
		t.Fatalf("output dir resolved against CWD, not workdir: %q", inv.OutputDir)
	}
}

func TestParseInvocation_RequiresWorkDir(t *testing.T) {
	_, err := ParseInvocation([]string{"--mode", "incremental"})
	if err == nil {
		t.Fatal("expected error for missing --workdir")
	}
	if ExitCodeFor(err) != ExitInvalidInvocation {
		t.Fatalf("exit code = %d, want %d", ExitCodeFor(err), ExitInvalidInvocation)
	}
}

func TestParseInvocation_RejectsRelativeWorkDir(t *testing.T) {
	_, err := ParseInvocation([]string{"--workdir", "relative/dir"})
	if err == nil {
		t.Fatal("expected error for relative --workdir")
	}
	if ExitCodeFor(err) != ExitInvalidInvocation {
		t.Fatalf("exit code = %d, want %d", ExitCodeFor(err), ExitInvalidInvocation)
	}
}

func TestParseInvocation_RejectsUnknownMode(t *testing.T) {
	workDir := t.TempDir()
	_, err := ParseInvocation([]string{"--workdir", workDir, "--mode", "turbo"})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if ExitCodeFor(err) != ExitInvalidInvocation {
		t.Fatalf("exit code = %d, want %d", ExitCodeFor(err), ExitInvalidInvocation)
	}
}

func TestParseInvocation_RejectsPositionalArguments(t *testing.T) {
	workDir := t.TempDir()
	_, err := ParseInvocation([]string{"--workdir", workDir, "stray"})
	if err == nil {
		t.Fatal("expected error for positional arguments")
	}
}

func TestParseInvocation_DefaultsToIncremental(t *testing.T) {
	workDir := t.TempDir()
	inv, err := ParseInvocation([]string{"--workdir", workDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ExecutionMode != ExecutionModeIncremental {
		t.Fatalf("mode = %q, want incremental", inv.ExecutionMode)
	}
	if inv.Trace.Enabled {
		t.Fatal("trace must be disabled by default")
	}
}

func TestParseInvocation_AbsoluteOverridesKeptAsIs(t *testing.T) {
	workDir := t.TempDir()
	out := t.TempDir()
	inv, err := ParseInvocation([]string{"--workdir", workDir, "--output-dir", out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.OutputDir != filepath.Clean(out) {
		t.Fatalf("absolute output dir rewritten: %q", inv.OutputDir)
	}
}

func TestExitCodeFor(t *testing.T) {
	if got := ExitCodeFor(nil); got != ExitSuccess {
		t.Errorf("nil error -> %d, want %d", got, ExitSuccess)
	}
	if got := ExitCodeFor(&InvocationError{ExitCode: ExitInvalidInvocation, Message: "x"}); got != ExitInvalidInvocation {
		t.Errorf("invocation error -> %d, want %d", got, ExitInvalidInvocation)
	}
	if got := ExitCodeFor(errors.New("boom")); got != ExitInternalError {
		t.Errorf("unknown error -> %d, want %d", got, ExitInternalError)
	}
}
