package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// GenerationTrace is the canonical, deterministic record of one generation
// run: which artifacts were extracted, replayed from cache, skipped, failed
// and emitted.
//
// Invariants:
//   - Must capture the configuration fingerprint and an ordered event list.
//   - Must contain logical decisions only, never runtime-dependent details:
//     no timestamps, no durations, no absolute paths, no error text.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() using a fully-specified ordering.
//   - JSON serialization fixes field order and omits absent optional fields.
//
// The trace is observational only; it must never affect generation behavior.
// Byte-for-byte stability of the canonical encoding is required so CI can
// diff traces across runs and machines.
type GenerationTrace struct {
	ConfigHash string
	Events     []Event
}

// EventKind is the stable discriminator for Event. The string values are
// part of the trace's canonical bytes; do not rename.
type EventKind string

const (
	// EventArtifactSkipped: the artifact declared no container class.
	EventArtifactSkipped EventKind = "ArtifactSkipped"

	// EventArtifactCached: the extraction was replayed from the cache.
	EventArtifactCached EventKind = "ArtifactCached"

	// EventArtifactExtracted: the artifact was freshly parsed and extracted.
	EventArtifactExtracted EventKind = "ArtifactExtracted"

	// EventArtifactFailed: extraction failed; the artifact was excluded.
	EventArtifactFailed EventKind = "ArtifactFailed"

	// EventArtifactEmitted: a fragment was rendered for the artifact.
	EventArtifactEmitted EventKind = "ArtifactEmitted"

	// EventGenerationFailed: the run halted before emission.
	EventGenerationFailed EventKind = "GenerationFailed"
)

// Event is one logical decision in a generation run.
type Event struct {
	Kind EventKind

	// ArtifactID identifies the artifact this event refers to. Required for
	// all artifact-level kinds; empty only for GenerationFailed.
	ArtifactID string

	// Reason is a stable, logical reason code (e.g. "DuplicateEventName",
	// "NoContainer"). Producers must keep values stable across versions.
	Reason string

	// EventNames lists the derived event names an extraction discovered.
	// Sorted during canonicalization; empty is normalized to nil.
	EventNames []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *GenerationTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ConfigHash == "" {
		return errors.New("configHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Kind != EventGenerationFailed && e.ArtifactID == "" {
			return fmt.Errorf("events[%d].artifactId is required for kind %q", i, e.Kind)
		}
		for j, n := range e.EventNames {
			if n == "" {
				return fmt.Errorf("events[%d].eventNames[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Ordering is independent of extraction scheduling: events are stably
// sorted by (artifactId, kindOrder, reason, eventNamesLex). EventNames are
// sorted and empty slices normalized to nil.
func (t *GenerationTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].EventNames) == 0 {
			t.Events[i].EventNames = nil
			continue
		}
		names := make([]string, len(t.Events[i].EventNames))
		copy(names, t.Events[i].EventNames)
		sort.Strings(names)
		t.Events[i].EventNames = names
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.ArtifactID != b.ArtifactID {
			return a.ArtifactID < b.ArtifactID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return lessStringSlices(a.EventNames, b.EventNames)
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventArtifactSkipped:
		return 10
	case EventArtifactCached:
		return 20
	case EventArtifactExtracted:
		return 30
	case EventArtifactFailed:
		return 40
	case EventArtifactEmitted:
		return 50
	case EventGenerationFailed:
		return 60
	default:
		return 1000
	}
}

func lessStringSlices(a, b []string) bool {
	min := len(a)
	if len(b) < min {
		min = len(b)
	}
	for i := 0; i < min; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace. It
// canonicalizes a copy so the caller's slices are never mutated.
func (t GenerationTrace) CanonicalJSON() ([]byte, error) {
	cp := GenerationTrace{ConfigHash: t.ConfigHash}
	cp.Events = make([]Event, len(t.Events))
	copy(cp.Events, t.Events)
	cp.Canonicalize()

	if err := cp.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"configHash":`)
	writeJSONString(&buf, cp.ConfigHash)
	buf.WriteString(`,"events":[`)
	for i, e := range cp.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"kind":`)
		writeJSONString(&buf, string(e.Kind))
		if e.ArtifactID != "" {
			buf.WriteString(`,"artifactId":`)
			writeJSONString(&buf, e.ArtifactID)
		}
		if e.Reason != "" {
			buf.WriteString(`,"reason":`)
			writeJSONString(&buf, e.Reason)
		}
		if len(e.EventNames) > 0 {
			buf.WriteString(`,"eventNames":[`)
			for j, n := range e.EventNames {
				if j > 0 {
					buf.WriteByte(',')
				}
				writeJSONString(&buf, n)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// writeJSONString appends a JSON string literal. encoding/json is used for
// the escaping so the canonical bytes match standard JSON expectations.
func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
