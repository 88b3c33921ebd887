// Package ident assigns stable integer identifiers to event names: a fixed
// reserved block for the host runtime's built-in events, then a sequential
// block for events discovered across the scanned artifacts.
package ident

import (
	"errors"
	"fmt"

	"behaviorgen/internal/extract"
)

// Builtins is the host runtime's fixed event vocabulary. Index i is bound to
// id i+1, so the built-in block occupies ids 1 through 9 in every table,
// independent of any artifact. The names and their order are part of the
// generated code's compatibility surface; do not reorder.
var Builtins = [9]string{
	"Ready",
	"Process",
	"PhysicsProcess",
	"Input",
	"UnhandledInput",
	"EnterTree",
	"ExitTree",
	"Paused",
	"Resumed",
}

// DiscoveredBase is the first id handed to a discovered event.
const DiscoveredBase = 10

// ErrDuplicateEventName reports two records sharing a derived event name.
// Duplicates corrupt the name/id bijection, so assignment halts rather than
// letting a later record silently win.
var ErrDuplicateEventName = errors.New("duplicate event name")

// DuplicateEventNameError carries the collision context for diagnostics.
type DuplicateEventNameError struct {
	EventName  string
	ArtifactID string
	// PriorArtifactID names the artifact that first claimed the event name.
	// Empty when the collision is with a built-in event.
	PriorArtifactID string
}

func (e *DuplicateEventNameError) Error() string {
	if e.PriorArtifactID == "" {
		return fmt.Sprintf("duplicate event name %q in %s: collides with a built-in event", e.EventName, e.ArtifactID)
	}
	return fmt.Sprintf("duplicate event name %q in %s: already declared in %s", e.EventName, e.ArtifactID, e.PriorArtifactID)
}

func (e *DuplicateEventNameError) Unwrap() error { return ErrDuplicateEventName }

// Table is the bidirectional event-name/identifier mapping for one emission.
//
// Tables are derived, never stored: each one is recomputed at emission time
// from the registry's current snapshot and is immutable once built.
type Table struct {
	idByName map[string]int
	nameByID map[int]string
	// discovered holds discovered event names in id order (DiscoveredBase..).
	discovered []string
}

// Pair is one (EventName, ID) binding, used for literal table emission.
type Pair struct {
	EventName string
	ID        int
}

// Assign computes the identifier table for a registry snapshot.
//
// The built-in block is seeded first (ids 1-9), then every handler record is
// walked in snapshot order: artifact discovery order, then intra-artifact
// declaration order, each receiving the next id from DiscoveredBase. Ids are
// stable as long as discovery order is stable.
//
// Any event name claimed twice, across artifacts, within one artifact, or
// against the built-in block, fails with a DuplicateEventNameError.
func Assign(snapshot []*extract.ArtifactContext) (*Table, error) {
	t := &Table{
		idByName: make(map[string]int, len(Builtins)),
		nameByID: make(map[int]string, len(Builtins)),
	}

	for i, name := range Builtins {
		t.idByName[name] = i + 1
		t.nameByID[i+1] = name
	}

	claimedBy := make(map[string]string) // event name -> artifact id
	next := DiscoveredBase
	for _, ac := range snapshot {
		if ac == nil {
			continue
		}
		for _, rec := range ac.Handlers {
			if prior, taken := claimedBy[rec.EventName]; taken {
				return nil, &DuplicateEventNameError{
					EventName:       rec.EventName,
					ArtifactID:      ac.ArtifactID,
					PriorArtifactID: prior,
				}
			}
			if id, ok := t.idByName[rec.EventName]; ok && id < DiscoveredBase {
				return nil, &DuplicateEventNameError{
					EventName:  rec.EventName,
					ArtifactID: ac.ArtifactID,
				}
			}

			claimedBy[rec.EventName] = ac.ArtifactID
			t.idByName[rec.EventName] = next
			t.nameByID[next] = rec.EventName
			t.discovered = append(t.discovered, rec.EventName)
			next++
		}
	}

	return t, nil
}

// ID returns the identifier assigned to an event name.
func (t *Table) ID(name string) (int, bool) {
	id, ok := t.idByName[name]
	return id, ok
}

// Name returns the event name bound to an identifier.
func (t *Table) Name(id int) (string, bool) {
	name, ok := t.nameByID[id]
	return name, ok
}

// Len returns the total number of bindings, built-in block included.
func (t *Table) Len() int {
	return len(t.idByName)
}

// Discovered returns the discovered event names in id order.
func (t *Table) Discovered() []string {
	out := make([]string, len(t.discovered))
	copy(out, t.discovered)
	return out
}

// Pairs returns every binding in ascending id order, built-ins first.
// This is the canonical iteration order for literal table emission.
func (t *Table) Pairs() []Pair {
	out := make([]Pair, 0, len(t.nameByID))
	for i, name := range Builtins {
		out = append(out, Pair{EventName: name, ID: i + 1})
	}
	for i, name := range t.discovered {
		out = append(out, Pair{EventName: name, ID: DiscoveredBase + i})
	}
	return out
}
