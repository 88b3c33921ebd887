// Package syntax provides the narrow view of a C# compilation unit that the
// generator needs: locating container classes by exact identifier, enumerating
// the delegate declarations nested inside them, and resolving the enclosing
// namespace of a declaration.
//
// It is intentionally split into:
//   - Parsing (Unit): a tree-sitter parse of one source artifact
//   - Typed views (ContainerClass, DelegateDecl): checked accessors over
//     raw syntax nodes so callers never downcast blindly
//
// Nothing in this package performs I/O or touches shared state; a Unit is a
// pure function of the source bytes it was parsed from.
package syntax
