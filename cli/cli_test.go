package cli_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "behaviorgen/internal/cli"
)

const behaviorSource = `public partial class Behavior
{
    public void Ready() { }
}
`

const playerSource = `namespace Game
{
    public partial class Behavior
    {
        [Signal]
        public delegate void JumpedEventHandler(int height);
    }
}
`

func writeSource(t *testing.T, workDir, rel, content string) {
	t.Helper()
	full := filepath.Join(workDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func TestDeterministicInvocation_IdenticalRunsIdenticalFragments(t *testing.T) {
	workDir := t.TempDir()
	writeSource(t, workDir, "Behavior.cs", behaviorSource)
	writeSource(t, workDir, "actors/Player.cs", playerSource)

	args := []string{
		"--workdir", workDir,
		"--cache-dir", "cache",
		"--output-dir", "out",
		"--mode", "clean",
		"--trace", "trace.json",
	}

	res1, err1 := icl.Run(context.Background(), args)
	if err1 != nil {
		t.Fatalf("run1 err: %v", err1)
	}
	if res1.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1 exit: %d", res1.ExitCode)
	}
	rootPath := filepath.Join(workDir, "out", "Behavior.g.cs")
	tracePath := filepath.Join(workDir, "trace.json")
	frag1 := readFile(t, rootPath)
	tr1 := readFile(t, tracePath)

	res2, err2 := icl.Run(context.Background(), args)
	if err2 != nil {
		t.Fatalf("run2 err: %v", err2)
	}
	if res2.ExitCode != icl.ExitSuccess {
		t.Fatalf("run2 exit: %d", res2.ExitCode)
	}
	frag2 := readFile(t, rootPath)
	tr2 := readFile(t, tracePath)

	if string(frag1) != string(frag2) {
		t.Fatalf("fragment differs across identical runs")
	}
	if string(tr1) != string(tr2) {
		t.Fatalf("trace differs across identical runs")
	}
}

func TestPathResolution_RelativePathsResolveAgainstWorkDir(t *testing.T) {
	workDir := t.TempDir()
	otherCwd := t.TempDir()
	writeSource(t, workDir, "Behavior.cs", behaviorSource)

	oldCwd, _ := os.Getwd()
	_ = os.Chdir(otherCwd)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	args := []string{
		"--workdir", workDir,
		"--cache-dir", "cache",
		"--output-dir", "out",
		"--mode", "clean",
		"--trace", "traces/t.json",
	}

	res, err := icl.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}

	if _, err := os.Stat(filepath.Join(workDir, "out", "Behavior.g.cs")); err != nil {
		t.Fatalf("expected fragment under workdir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "traces", "t.json")); err != nil {
		t.Fatalf("expected trace under workdir: %v", err)
	}
}

func TestExitCodeStability_DuplicateEventNameIsStable(t *testing.T) {
	workDir := t.TempDir()
	writeSource(t, workDir, "A.cs", playerSource)
	writeSource(t, workDir, "B.cs", playerSource)

	args := []string{
		"--workdir", workDir,
		"--cache-dir", "cache",
		"--output-dir", "out",
		"--mode", "clean",
	}

	res1, _ := icl.Run(context.Background(), args)
	res2, _ := icl.Run(context.Background(), args)
	if res1.ExitCode != icl.ExitGenerationFailure || res2.ExitCode != icl.ExitGenerationFailure {
		t.Fatalf("expected stable generation failure exit code; got %d and %d", res1.ExitCode, res2.ExitCode)
	}
}

func TestCachePersistence_IncrementalReuseIsTraceable(t *testing.T) {
	workDir := t.TempDir()
	writeSource(t, workDir, "Behavior.cs", behaviorSource)
	writeSource(t, workDir, "actors/Player.cs", playerSource)

	args := []string{
		"--workdir", workDir,
		"--cache-dir", "cache",
		"--output-dir", "out",
		"--mode", "incremental",
		"--trace", "trace.json",
	}

	res1, err := icl.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("run1 err: %v", err)
	}
	if res1.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1 exit: %d", res1.ExitCode)
	}
	if res1.Run.Extracted != 2 {
		t.Fatalf("run1 extracted = %d, want 2", res1.Run.Extracted)
	}

	res2, err := icl.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("run2 err: %v", err)
	}
	if res2.Run.FromCache != 2 || res2.Run.Extracted != 0 {
		t.Fatalf("run2 did not replay from cache: %#v", res2.Run)
	}

	b := readFile(t, filepath.Join(workDir, "trace.json"))
	var tr struct {
		ConfigHash string `json:"configHash"`
		Events     []struct {
			Kind string `json:"kind"`
		} `json:"events"`
	}
	if err := json.Unmarshal(b, &tr); err != nil {
		t.Fatalf("trace json invalid: %v", err)
	}
	if tr.ConfigHash == "" {
		t.Fatalf("missing configHash")
	}
	hasCached := false
	for _, e := range tr.Events {
		if e.Kind == "ArtifactCached" {
			hasCached = true
			break
		}
	}
	if !hasCached {
		t.Fatalf("expected ArtifactCached event in trace")
	}
}

func TestInvalidInvocation_DeterministicAndExplainable(t *testing.T) {
	args := []string{
		"--cache-dir", "cache",
		"--output-dir", "out",
	}
	res1, err1 := icl.Run(context.Background(), args)
	res2, err2 := icl.Run(context.Background(), args)

	if res1.ExitCode != icl.ExitInvalidInvocation || res2.ExitCode != icl.ExitInvalidInvocation {
		t.Fatalf("expected exit 2, got %d and %d", res1.ExitCode, res2.ExitCode)
	}
	if err1 == nil || err2 == nil {
		t.Fatalf("expected errors")
	}
	if err1.Error() != err2.Error() {
		t.Fatalf("expected deterministic error message")
	}
}

func TestGeneratedFragments_CarryAutoGeneratedHeader(t *testing.T) {
	workDir := t.TempDir()
	writeSource(t, workDir, "Behavior.cs", behaviorSource)

	args := []string{
		"--workdir", workDir,
		"--cache-dir", "cache",
		"--output-dir", "out",
		"--mode", "clean",
	}
	res, err := icl.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}

	frag := string(readFile(t, filepath.Join(workDir, "out", "Behavior.g.cs")))
	if !strings.HasPrefix(frag, "// <auto-generated/>") {
		t.Fatalf("fragment missing auto-generated header:\n%s", frag)
	}
}
