// Package extract implements the symbol extractor: the per-artifact scan
// that turns a source file into the structured event-handler records the
// rest of the generator aggregates and emits.
package extract

// EventHandlerRecord describes one marked callback-type declaration.
//
// Records are immutable once extracted. EventName is derived from
// HandlerName by stripping the fixed handler suffix and is later used as a
// process-wide lookup key.
type EventHandlerRecord struct {
	// HandlerName is the declared delegate identifier, e.g. "JumpedEventHandler".
	HandlerName string `json:"handler_name"`

	// EventName is HandlerName with the handler suffix removed, e.g. "Jumped".
	EventName string `json:"event_name"`

	// ParameterNames holds the formal parameter names in declaration order.
	ParameterNames []string `json:"parameter_names"`
}

// ArtifactContext is the full extraction result for one source artifact
// that carries a designated container class.
//
// A context is always a complete replacement for any prior extraction of
// the same artifact; it is never partially updated.
type ArtifactContext struct {
	// NamespaceName is the fully-qualified namespace enclosing the
	// container class. Empty means the default/global namespace.
	NamespaceName string `json:"namespace_name"`

	// ArtifactID is the stable identity of the source artifact, the
	// slash-normalized path relative to the scan root.
	ArtifactID string `json:"artifact_id"`

	// Handlers holds the extracted records in declaration order.
	// A container with zero qualifying declarations yields an empty (not
	// nil-context) handler sequence: downstream emission still produces
	// the per-artifact fragment.
	Handlers []EventHandlerRecord `json:"handlers"`
}
