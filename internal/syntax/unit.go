package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// Unit is a parsed C# compilation unit over a single source artifact.
//
// A Unit owns its tree-sitter tree; callers must Close it when done.
// Units are not safe for concurrent use, but independent Units may be
// parsed and read concurrently (a fresh parser is created per Parse call).
type Unit struct {
	src  []byte
	tree *sitter.Tree
}

// Parse parses C# source into a Unit.
//
// tree-sitter is error-tolerant: a Unit is returned even when the source
// contains syntax errors. Callers can check HasSyntaxErrors and decide
// whether partial results are acceptable.
func Parse(ctx context.Context, source []byte) (*Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	if tree.RootNode() == nil {
		tree.Close()
		return nil, fmt.Errorf("parsing source: no root node")
	}

	return &Unit{src: source, tree: tree}, nil
}

// Close releases the underlying tree-sitter tree.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// HasSyntaxErrors reports whether the parse tree contains error nodes.
func (u *Unit) HasSyntaxErrors() bool {
	return u.tree.RootNode().HasError()
}

// Containers returns all class declarations whose identifier exactly matches
// name, in source order. This is the syntactic filter: it compares raw
// identifier text and performs no semantic work.
func (u *Unit) Containers(name string) []ContainerClass {
	var out []ContainerClass
	u.walk(u.tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != nodeClassDeclaration {
			return
		}
		ident := n.ChildByFieldName(fieldName)
		if ident == nil {
			return
		}
		if ident.Content(u.src) == name {
			out = append(out, ContainerClass{unit: u, node: n})
		}
	})
	return out
}

// walk visits every named node in the tree, depth-first, source order.
func (u *Unit) walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		u.walk(n.NamedChild(i), visit)
	}
}

// ContainerClass is a checked view over a class_declaration node.
type ContainerClass struct {
	unit *Unit
	node *sitter.Node
}

// Name returns the class identifier.
func (c ContainerClass) Name() string {
	ident := c.node.ChildByFieldName(fieldName)
	if ident == nil {
		return ""
	}
	return ident.Content(c.unit.src)
}

// Namespace resolves the fully-qualified namespace enclosing this class.
// See ResolveNamespace for the composition rules.
func (c ContainerClass) Namespace() string {
	return ResolveNamespace(c.node, c.unit.src)
}

// Delegates returns the delegate declarations nested directly in the class
// body, in declaration order.
func (c ContainerClass) Delegates() []DelegateDecl {
	body := c.node.ChildByFieldName(fieldBody)
	if body == nil {
		return nil
	}

	var out []DelegateDecl
	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		child := body.NamedChild(i)
		if child.Type() == nodeDelegateDeclaration {
			out = append(out, DelegateDecl{unit: c.unit, node: child})
		}
	}
	return out
}

// DelegateDecl is a checked view over a delegate_declaration node.
type DelegateDecl struct {
	unit *Unit
	node *sitter.Node
}

// Name returns the declared delegate identifier. ok is false when the
// declaration is too malformed to carry a name.
func (d DelegateDecl) Name() (string, bool) {
	ident := d.node.ChildByFieldName(fieldName)
	if ident == nil {
		return "", false
	}
	return ident.Content(d.unit.src), true
}

// HasAttribute reports whether the declaration carries the named attribute.
// Both the plain form ([Signal]) and the suffixed form ([SignalAttribute])
// match, and qualified attribute names are compared by their last segment.
func (d DelegateDecl) HasAttribute(name string) bool {
	count := int(d.node.NamedChildCount())
	for i := 0; i < count; i++ {
		list := d.node.NamedChild(i)
		if list.Type() != nodeAttributeList {
			continue
		}
		attrs := int(list.NamedChildCount())
		for j := 0; j < attrs; j++ {
			attr := list.NamedChild(j)
			if attr.Type() != nodeAttribute {
				continue
			}
			attrName := attr.ChildByFieldName(fieldName)
			if attrName == nil {
				continue
			}
			got := lastSegment(attrName.Content(d.unit.src))
			if got == name || got == name+"Attribute" {
				return true
			}
		}
	}
	return false
}

// ParameterNames returns the formal parameter names in declaration order.
// ok is false when any parameter lacks a resolvable name, in which case the
// declaration should be treated as unresolvable rather than partially read.
func (d DelegateDecl) ParameterNames() ([]string, bool) {
	params := d.node.ChildByFieldName(fieldParameters)
	if params == nil {
		return nil, false
	}

	names := make([]string, 0, params.NamedChildCount())
	count := int(params.NamedChildCount())
	for i := 0; i < count; i++ {
		p := params.NamedChild(i)
		if p.Type() != nodeParameter {
			continue
		}
		ident := p.ChildByFieldName(fieldName)
		if ident == nil {
			return nil, false
		}
		names = append(names, ident.Content(d.unit.src))
	}
	return names, true
}

// lastSegment returns the final dotted segment of a possibly-qualified name.
func lastSegment(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// Grammar vocabulary consumed from tree-sitter-c-sharp. The strings are part
// of the grammar's stable node taxonomy; do not rename.
const (
	nodeClassDeclaration     = "class_declaration"
	nodeDelegateDeclaration  = "delegate_declaration"
	nodeAttributeList        = "attribute_list"
	nodeAttribute            = "attribute"
	nodeParameter            = "parameter"
	nodeNamespace            = "namespace_declaration"
	nodeFileScopedNamespace  = "file_scoped_namespace_declaration"

	fieldName       = "name"
	fieldBody       = "body"
	fieldParameters = "parameters"
)
