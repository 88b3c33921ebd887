package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"behaviorgen/internal/config"
	"behaviorgen/internal/ident"
)

const rootSource = `using System;

public partial class Behavior
{
    public void Ready() { }
}
`

const playerSource = `using System;

namespace Game.Actors
{
    public partial class Behavior
    {
        [Signal]
        public delegate void JumpedEventHandler(int height);
    }
}
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(t *testing.T, dir string) *Generator {
	t.Helper()
	gen, err := NewGenerator(config.Default(), dir, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return gen
}

func TestRun_GeneratesRootAndMemberFragments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "actors/Player.cs", playerSource)

	gen := newTestGenerator(t, dir)
	res, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Artifacts != 2 {
		t.Errorf("Artifacts = %d, want 2", res.Artifacts)
	}
	if res.Extracted != 2 || res.FromCache != 0 {
		t.Errorf("Extracted = %d, FromCache = %d, want 2, 0", res.Extracted, res.FromCache)
	}
	if res.Emitted != 2 {
		t.Errorf("Emitted = %d, want 2", res.Emitted)
	}

	root := readFragment(t, dir, "Behavior.g.cs")
	for _, want := range []string{
		"public void Connect(",
		"public void Disconnect(",
		"EventIds",
		"EventNames",
		`{ "Jumped", 10 }`,
		"Jumped += GetJumpedEventHandler();",
		`Ready += () => OnSignal("Ready");`,
	} {
		if !strings.Contains(root, want) {
			t.Errorf("root fragment missing %q:\n%s", want, root)
		}
	}

	member := readFragment(t, dir, "actors/Player.g.cs")
	if !strings.Contains(member, "GetJumpedEventHandler") {
		t.Errorf("member fragment missing factory:\n%s", member)
	}
	if !strings.Contains(member, "namespace Game.Actors") {
		t.Errorf("member fragment missing namespace:\n%s", member)
	}
	for _, reject := range []string{"Connect(", "EventIds", "EventNames"} {
		if strings.Contains(member, reject) {
			t.Errorf("member fragment must not carry root section %q:\n%s", reject, member)
		}
	}
}

func TestRun_SecondRunHitsCacheAndLeavesFragmentsUntouched(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "actors/Player.cs", playerSource)

	gen := newTestGenerator(t, dir)
	if _, err := gen.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.FromCache != 2 || res.Extracted != 0 {
		t.Errorf("FromCache = %d, Extracted = %d, want 2, 0", res.FromCache, res.Extracted)
	}
	if res.Unchanged != 2 || res.Emitted != 0 {
		t.Errorf("Unchanged = %d, Emitted = %d, want 2, 0", res.Unchanged, res.Emitted)
	}
}

func TestRun_EditedArtifactIsReExtracted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "actors/Player.cs", playerSource)

	gen := newTestGenerator(t, dir)
	if _, err := gen.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	edited := strings.Replace(playerSource, "JumpedEventHandler", "LandedEventHandler", 1)
	writeFile(t, dir, "actors/Player.cs", edited)

	res, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Extracted != 1 || res.FromCache != 1 {
		t.Errorf("Extracted = %d, FromCache = %d, want 1, 1", res.Extracted, res.FromCache)
	}

	member := readFragment(t, dir, "actors/Player.g.cs")
	if !strings.Contains(member, "GetLandedEventHandler") {
		t.Errorf("member fragment not regenerated:\n%s", member)
	}
	root := readFragment(t, dir, "Behavior.g.cs")
	if strings.Contains(root, "Jumped") {
		t.Errorf("root fragment still carries the replaced event:\n%s", root)
	}
}

func TestRun_ArtifactWithoutContainerIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "Util.cs", "public static class Util { }\n")

	gen := newTestGenerator(t, dir)
	res, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if _, err := os.Stat(filepath.Join(dir, "generated", "Util.g.cs")); !os.IsNotExist(err) {
		t.Errorf("skipped artifact must not produce a fragment (stat err = %v)", err)
	}
}

func TestRun_DuplicateEventNameHaltsGeneration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "A.cs", memberWithEvent("Died"))
	writeFile(t, dir, "B.cs", memberWithEvent("Died"))

	gen := newTestGenerator(t, dir)
	_, err := gen.Run(context.Background())
	if !errors.Is(err, ident.ErrDuplicateEventName) {
		t.Fatalf("err = %v, want ErrDuplicateEventName", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "generated")); !os.IsNotExist(statErr) {
		t.Errorf("failed run must not emit fragments (stat err = %v)", statErr)
	}
}

func TestRun_BuiltinCollisionHaltsGeneration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "A.cs", memberWithEvent("Ready"))

	gen := newTestGenerator(t, dir)
	_, err := gen.Run(context.Background())
	if !errors.Is(err, ident.ErrDuplicateEventName) {
		t.Fatalf("err = %v, want ErrDuplicateEventName", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := newTestGenerator(t, dir)
	if _, err := gen.Run(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRun_DiscoveredIDsAreEnumerationOrdered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Behavior.cs", rootSource)
	writeFile(t, dir, "A.cs", memberWithEvent("Alpha"))
	writeFile(t, dir, "B.cs", memberWithEvent("Beta"))
	writeFile(t, dir, "C.cs", memberWithEvent("Gamma"))

	gen := newTestGenerator(t, dir)
	if _, err := gen.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	root := readFragment(t, dir, "Behavior.g.cs")
	for pair, want := range map[string]string{
		"Alpha": `{ "Alpha", 10 }`,
		"Beta":  `{ "Beta", 11 }`,
		"Gamma": `{ "Gamma", 12 }`,
	} {
		if !strings.Contains(root, want) {
			t.Errorf("root fragment missing mapping for %s (%s):\n%s", pair, want, root)
		}
	}
}

func memberWithEvent(name string) string {
	return `public partial class Behavior
{
    [Signal]
    public delegate void ` + name + `EventHandler();
}
`
}

func readFragment(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "generated", filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading fragment %s: %v", rel, err)
	}
	return string(data)
}
