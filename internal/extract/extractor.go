package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"behaviorgen/internal/syntax"
)

// Extractor performs the two-stage scan of one source artifact: a cheap
// syntactic filter for the designated container class, then semantic
// extraction of the marked delegate declarations nested inside it.
//
// Extraction is a pure function of the artifact: no shared state is read or
// written, so independent artifacts may be extracted concurrently and any
// extraction may be discarded and recomputed at will.
type Extractor struct {
	// Container is the exact class identifier accepted by the syntactic
	// filter, e.g. "Behavior".
	Container string

	// Marker is the attribute that designates a delegate as an event
	// handler, e.g. "Signal".
	Marker string

	// Suffix is the required handler-name suffix, e.g. "EventHandler".
	Suffix string

	// Logger receives artifact-local diagnostics (malformed or
	// unresolvable declarations). Never nil after New.
	Logger *slog.Logger
}

// New creates an Extractor. A nil logger falls back to slog.Default.
func New(container, marker, suffix string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Container: container,
		Marker:    marker,
		Suffix:    suffix,
		Logger:    logger,
	}
}

// Extract scans one source artifact.
//
// Returns (nil, nil) when the artifact declares no container class at all:
// the artifact is simply not part of the generator's input shape. When a
// container is present, a non-nil context is always returned, even with an
// empty handler sequence.
//
// Declaration-level problems are artifact-local and never abort the scan:
// a marked delegate whose name lacks the required suffix is excluded with a
// warning, and a declaration whose name or parameters cannot be resolved is
// skipped while the rest of the container is processed.
func (e *Extractor) Extract(ctx context.Context, artifactID string, source []byte) (*ArtifactContext, error) {
	unit, err := syntax.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", artifactID, err)
	}
	defer unit.Close()

	containers := unit.Containers(e.Container)
	if len(containers) == 0 {
		return nil, nil
	}
	if len(containers) > 1 {
		e.Logger.Warn("multiple container classes in one artifact; using the first",
			"artifact", artifactID,
			"container", e.Container,
			"count", len(containers))
	}
	container := containers[0]

	if unit.HasSyntaxErrors() {
		// tree-sitter recovers around error nodes; extraction proceeds on
		// whatever parsed, and the log line points at the artifact.
		e.Logger.Warn("artifact contains syntax errors; extraction may be partial",
			"artifact", artifactID)
	}

	out := &ArtifactContext{
		NamespaceName: container.Namespace(),
		ArtifactID:    artifactID,
		Handlers:      []EventHandlerRecord{},
	}

	for _, decl := range container.Delegates() {
		if !decl.HasAttribute(e.Marker) {
			continue
		}

		name, ok := decl.Name()
		if !ok {
			e.Logger.Warn("skipping unresolvable delegate declaration",
				"artifact", artifactID)
			continue
		}

		if !strings.HasSuffix(name, e.Suffix) || name == e.Suffix {
			e.Logger.Warn("marked delegate name does not end with handler suffix; excluded",
				"artifact", artifactID,
				"handler", name,
				"suffix", e.Suffix)
			continue
		}

		params, ok := decl.ParameterNames()
		if !ok {
			e.Logger.Warn("skipping delegate with unresolvable parameters",
				"artifact", artifactID,
				"handler", name)
			continue
		}

		out.Handlers = append(out.Handlers, EventHandlerRecord{
			HandlerName:    name,
			EventName:      strings.TrimSuffix(name, e.Suffix),
			ParameterNames: params,
		})
	}

	return out, nil
}
