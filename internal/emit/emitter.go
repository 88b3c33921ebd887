// Package emit renders the per-artifact companion source fragments.
//
// Rendering is pure, in-memory string construction: the same context,
// identifier table and registry snapshot always produce byte-identical
// output, which the surrounding pipeline relies on for change detection.
package emit

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"behaviorgen/internal/extract"
	"behaviorgen/internal/ident"
)

const header = "// <auto-generated/>\n// Produced by behaviorgen. Do not edit.\n"

// Emitter renders generated source fragments for scanned artifacts.
type Emitter struct {
	// Container is the designated container class name, e.g. "Behavior".
	Container string

	// Dispatch is the fixed dispatch entry point every generated closure
	// routes through, e.g. "OnSignal".
	Dispatch string
}

// New creates an Emitter.
func New(container, dispatch string) *Emitter {
	return &Emitter{Container: container, Dispatch: dispatch}
}

// Render produces the companion fragment for one artifact.
//
// Every fragment carries one factory method per handler record in ac. When
// isRoot is set, the fragment additionally carries the Connect/Disconnect
// methods binding and unbinding every event to its generated closure, one
// conditional block per built-in event followed by one per event discovered
// anywhere in snapshot, and the two static lookup tables from table. The
// root fragment is therefore a function of the global registry state, not
// just its own context.
//
// An empty ac.NamespaceName emits into the default namespace (no namespace
// wrapper); that is the defined policy, not a failure.
func (e *Emitter) Render(ac *extract.ArtifactContext, isRoot bool, table *ident.Table, snapshot []*extract.ArtifactContext) ([]byte, error) {
	if ac == nil {
		return nil, fmt.Errorf("rendering: nil artifact context")
	}
	if isRoot && table == nil {
		return nil, fmt.Errorf("rendering %s: root fragment requires an identifier table", ac.ArtifactID)
	}

	b := &fragmentBuilder{
		namespace: ac.NamespaceName,
		container: e.Container,
	}

	for _, rec := range ac.Handlers {
		block, err := renderBlock("factory", factoryData{
			HandlerName: rec.HandlerName,
			EventName:   rec.EventName,
			Params:      rec.ParameterNames,
			Dispatch:    e.Dispatch,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", ac.ArtifactID, err)
		}
		b.members = append(b.members, block)
	}

	if isRoot {
		bindings := e.globalBindings(snapshot)

		for _, op := range []struct {
			method   string
			operator string
		}{
			{"Connect", "+="},
			{"Disconnect", "-="},
		} {
			block, err := renderBlock("connect", connectData{
				Method:   op.method,
				Operator: op.operator,
				Bindings: bindings,
			})
			if err != nil {
				return nil, fmt.Errorf("rendering %s: %w", ac.ArtifactID, err)
			}
			b.members = append(b.members, block)
		}

		pairs := table.Pairs()
		ids := tableData{Field: "EventIds", KeyType: "string", ValType: "int"}
		names := tableData{Field: "EventNames", KeyType: "int", ValType: "string"}
		for _, p := range pairs {
			ids.Rows = append(ids.Rows, tableRow{
				Key:   strconv.Quote(p.EventName),
				Value: strconv.Itoa(p.ID),
			})
			names.Rows = append(names.Rows, tableRow{
				Key:   strconv.Itoa(p.ID),
				Value: strconv.Quote(p.EventName),
			})
		}
		for _, td := range []tableData{ids, names} {
			block, err := renderBlock("table", td)
			if err != nil {
				return nil, fmt.Errorf("rendering %s: %w", ac.ArtifactID, err)
			}
			b.members = append(b.members, block)
		}
	}

	return b.build(), nil
}

// OutputName derives the generated fragment's name from the artifact's name
// by suffix substitution: "Behavior.cs" with suffix ".g.cs" maps to
// "Behavior.g.cs". Names without a ".cs" extension get the suffix appended.
func OutputName(artifactID, suffix string) string {
	if strings.HasSuffix(artifactID, ".cs") {
		return strings.TrimSuffix(artifactID, ".cs") + suffix
	}
	return artifactID + suffix
}

// globalBindings lists the connect/disconnect targets in canonical order:
// the built-in block first, then every discovered event in snapshot order.
//
// Every event is bound to its generated closure, so connecting routes the
// event through the dispatch entry point. Discovered events bind the factory
// emitted in their own artifact's fragment; built-in events carry no handler
// records, so their dispatch closure is generated inline.
func (e *Emitter) globalBindings(snapshot []*extract.ArtifactContext) []bindingData {
	out := make([]bindingData, 0, len(ident.Builtins))
	for _, name := range ident.Builtins {
		out = append(out, bindingData{
			EventName: name,
			Closure:   fmt.Sprintf("() => %s(%q)", e.Dispatch, name),
		})
	}
	for _, ac := range snapshot {
		if ac == nil {
			continue
		}
		for _, rec := range ac.Handlers {
			out = append(out, bindingData{
				EventName: rec.EventName,
				Closure:   "Get" + rec.HandlerName + "()",
			})
		}
	}
	return out
}

func renderBlock(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return buf.String(), nil
}

// fragmentBuilder assembles the rendered member blocks into the final
// fragment text, handling the namespace wrapper and indentation uniformly.
type fragmentBuilder struct {
	namespace string
	container string
	members   []string
}

const indentUnit = "    "

func (b *fragmentBuilder) build() []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("\n")

	depth := 0
	if b.namespace != "" {
		buf.WriteString("namespace " + b.namespace + "\n{\n")
		depth = 1
	}

	classIndent := strings.Repeat(indentUnit, depth)
	buf.WriteString(classIndent + "public partial class " + b.container + "\n")
	buf.WriteString(classIndent + "{\n")

	memberIndent := strings.Repeat(indentUnit, depth+1)
	for i, member := range b.members {
		if i > 0 {
			buf.WriteString("\n")
		}
		for _, line := range strings.Split(strings.TrimRight(member, "\n"), "\n") {
			if line == "" {
				buf.WriteString("\n")
				continue
			}
			buf.WriteString(memberIndent + line + "\n")
		}
	}

	buf.WriteString(classIndent + "}\n")
	if b.namespace != "" {
		buf.WriteString("}\n")
	}
	return buf.Bytes()
}
