package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// ResolveNamespace walks a declaration's structural ancestors outward and
// composes every enclosing namespace declaration into one dotted path,
// outermost first.
//
// Both block-scoped (namespace A { ... }) and file-scoped (namespace A;)
// declarations participate, and a single declaration may itself carry a
// qualified name (namespace A.B), which is kept verbatim as a segment.
//
// A declaration outside any namespace resolves to the empty string: the
// default/global namespace. That is a defined outcome, not an error.
func ResolveNamespace(decl *sitter.Node, src []byte) string {
	path := ""
	for n := decl.Parent(); n != nil; n = n.Parent() {
		if n.Type() != nodeNamespace && n.Type() != nodeFileScopedNamespace {
			continue
		}
		name := n.ChildByFieldName(fieldName)
		if name == nil {
			continue
		}
		segment := name.Content(src)
		if path == "" {
			path = segment
		} else {
			path = segment + "." + path
		}
	}
	return path
}
