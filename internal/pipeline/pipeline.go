// Package pipeline drives a generation run end to end: deterministic
// artifact enumeration, content-hash invalidation against the extraction
// cache, concurrent per-artifact extraction, registry aggregation, and
// fragment emission.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"behaviorgen/internal/config"
	"behaviorgen/internal/emit"
	"behaviorgen/internal/extract"
	"behaviorgen/internal/ident"
	"behaviorgen/internal/registry"
	"behaviorgen/internal/trace"
)

// Generator owns one generation pipeline: the registry lifecycle, the
// extraction cache, and the extract/emit stages wired to one configuration.
//
// The registry is created at construction and persists across Run calls
// within the process (insert-or-replace, never delete); Reset provides the
// cold-rebuild hook.
type Generator struct {
	Config  config.Config
	WorkDir string

	Registry *registry.Registry
	Cache    Cache
	Logger   *slog.Logger
	Sink     trace.Sink

	extractor *extract.Extractor
	emitter   *emit.Emitter
	hasher    *ArtifactHasher
}

// NewGenerator wires a Generator from a validated configuration.
// workDir must be absolute. A nil cache defaults to an in-memory cache and
// a nil sink discards trace events.
func NewGenerator(cfg config.Config, workDir string, cache Cache, sink trace.Sink, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(workDir) {
		return nil, fmt.Errorf("work dir must be absolute (got %q)", workDir)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if sink == nil {
		sink = trace.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		Config:    cfg,
		WorkDir:   workDir,
		Registry:  registry.New(),
		Cache:     cache,
		Logger:    logger,
		Sink:      sink,
		extractor: extract.New(cfg.Container, cfg.Marker, cfg.HandlerSuffix, logger),
		emitter:   emit.New(cfg.Container, cfg.Dispatch),
		hasher:    NewArtifactHasher(),
	}, nil
}

// Result summarizes one generation run.
type Result struct {
	Artifacts int // enumerated candidates
	Extracted int // freshly parsed artifacts
	FromCache int // extractions replayed from the cache
	Skipped   int // artifacts with no container class
	Failed    int // artifact-local extraction failures
	Emitted   int // fragments written or rewritten
	Unchanged int // fragments already byte-identical on disk

	// Fragments maps artifact id to rendered fragment bytes.
	Fragments map[string][]byte
}

// outcome is the per-artifact result collected from the worker pool.
type outcome struct {
	ctx       *extract.ArtifactContext
	fromCache bool
	err       error
}

// Run executes one full generation pass.
//
// Extraction runs on a bounded worker pool, but results are registered in
// enumeration order, so registry discovery order, and with it identifier
// assignment, is independent of worker scheduling. The registry is written
// only after the pool drains: a cancelled run leaves no partial state.
//
// The only error that halts generation after enumeration is an identifier
// collision (ident.ErrDuplicateEventName); extraction failures are
// artifact-local, logged and counted.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	scanner := &Scanner{
		BaseDir:       g.WorkDir,
		Include:       g.Config.Include,
		ExcludeDirs:   []string{g.Config.OutputDir, g.Config.CacheDir},
		ExcludeSuffix: g.Config.OutputSuffix,
	}
	artifacts, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	fingerprint := g.Config.Fingerprint()
	outcomes := g.extractAll(ctx, artifacts, fingerprint)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation cancelled: %w", err)
	}

	res := &Result{
		Artifacts: len(artifacts),
		Fragments: make(map[string][]byte),
	}

	// Registration happens strictly in enumeration order.
	for i, art := range artifacts {
		oc := outcomes[i]
		switch {
		case oc.err != nil:
			res.Failed++
			g.Logger.Error("artifact excluded from generation",
				"artifact", art.ID, "error", oc.err)
			g.Sink.Record(trace.Event{
				Kind:       trace.EventArtifactFailed,
				ArtifactID: art.ID,
				Reason:     "ExtractionError",
			})
		case oc.ctx == nil:
			res.Skipped++
			g.Sink.Record(trace.Event{
				Kind:       trace.EventArtifactSkipped,
				ArtifactID: art.ID,
				Reason:     "NoContainer",
			})
		default:
			g.Registry.Upsert(oc.ctx)
			kind := trace.EventArtifactExtracted
			if oc.fromCache {
				kind = trace.EventArtifactCached
				res.FromCache++
			} else {
				res.Extracted++
			}
			g.Sink.Record(trace.Event{
				Kind:       kind,
				ArtifactID: art.ID,
				EventNames: eventNames(oc.ctx),
			})
		}
	}

	snapshot := g.Registry.Snapshot()
	table, err := ident.Assign(snapshot)
	if err != nil {
		g.Sink.Record(trace.Event{
			Kind:   trace.EventGenerationFailed,
			Reason: "DuplicateEventName",
		})
		return nil, fmt.Errorf("assigning event identifiers: %w", err)
	}

	outputDir := g.resolveDir(g.Config.OutputDir)
	for _, art := range artifacts {
		ac, ok := g.Registry.Get(art.ID)
		if !ok {
			continue
		}
		isRoot := filepath.Base(art.ID) == g.Config.RootArtifact
		fragment, renderErr := g.emitter.Render(ac, isRoot, table, snapshot)
		if renderErr != nil {
			return nil, renderErr
		}
		res.Fragments[art.ID] = fragment

		outPath := filepath.Join(outputDir, filepath.FromSlash(emit.OutputName(art.ID, g.Config.OutputSuffix)))
		changed, writeErr := writeIfChanged(outPath, fragment)
		if writeErr != nil {
			return nil, fmt.Errorf("writing fragment for %s: %w", art.ID, writeErr)
		}
		if changed {
			res.Emitted++
		} else {
			res.Unchanged++
		}
		g.Sink.Record(trace.Event{
			Kind:       trace.EventArtifactEmitted,
			ArtifactID: art.ID,
		})
	}

	return res, nil
}

// extractAll runs the extraction stage over a bounded worker pool and
// returns one outcome per artifact, indexed like artifacts.
func (g *Generator) extractAll(ctx context.Context, artifacts []Artifact, fingerprint string) []outcome {
	outcomes := make([]outcome, len(artifacts))
	if len(artifacts) == 0 {
		return outcomes
	}

	concurrency := g.Config.Concurrency
	if concurrency > len(artifacts) {
		concurrency = len(artifacts)
	}

	workCh := make(chan int, concurrency)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				outcomes[i] = g.extractOne(ctx, artifacts[i], fingerprint)
			}
		}()
	}
	for i := range artifacts {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	return outcomes
}

// extractOne resolves a single artifact, from cache when possible.
func (g *Generator) extractOne(ctx context.Context, art Artifact, fingerprint string) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	hash := g.hasher.ComputeHash(HashInput{
		ArtifactID:        art.ID,
		ConfigFingerprint: fingerprint,
		Content:           art.Content,
	})

	entry, err := g.Cache.Get(hash)
	if err != nil {
		// Cache trouble degrades to a fresh extraction, never a failure.
		g.Logger.Warn("cache read failed; extracting", "artifact", art.ID, "error", err)
	}
	if entry != nil {
		if entry.Skipped {
			return outcome{fromCache: true}
		}
		return outcome{ctx: entry.Context, fromCache: true}
	}

	ac, err := g.extractor.Extract(ctx, art.ID, art.Content)
	if err != nil {
		return outcome{err: err}
	}

	if putErr := g.Cache.Put(&CacheEntry{Hash: hash, Skipped: ac == nil, Context: ac}); putErr != nil {
		g.Logger.Warn("cache write failed", "artifact", art.ID, "error", putErr)
	}
	return outcome{ctx: ac}
}

func (g *Generator) resolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(g.WorkDir, dir)
}

// writeIfChanged writes data to path atomically, unless the file already
// holds exactly these bytes. Reports whether a write happened.
func writeIfChanged(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == string(data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

func eventNames(ac *extract.ArtifactContext) []string {
	if ac == nil || len(ac.Handlers) == 0 {
		return nil
	}
	out := make([]string, 0, len(ac.Handlers))
	for _, rec := range ac.Handlers {
		out = append(out, rec.EventName)
	}
	return out
}
