package cq

import (
	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/resolve"
)

// ParseQuery parses the textual query language into query trees, one per
// comma-separated top-level query. Syntax errors are *ParseError.
func ParseQuery(text string) ([]*Query, error) {
	return query.Parse(text)
}

// Ident matches a declaration bound to name. Children are searched within
// the matched node.
func Ident(name string, children ...*Query) *Query { return query.Ident(name, children...) }

// Str matches a string literal whose value is s.
func Str(s string, children ...*Query) *Query { return query.Str(s, children...) }

// RangeOf spans from the start of start to the end of end.
func RangeOf(start, end *Query) *Query { return query.RangeOf(start, end) }

// Line selects the 1-based line n.
func Line(n int) *Query { return query.Line(n) }

// EOF selects the empty range at the end of the source.
func EOF() *Query { return query.EOF() }

// Call applies the operator callee. The first argument is the inner query.
func Call(callee string, args ...*Query) *Query { return query.Call(callee, args...) }

// Num is a numeric operator parameter.
func Num(n int) *Query { return query.Num(n) }

// Engines returns the names of the built-in engines.
func Engines() []string {
	return engine.Names()
}

// BuiltinOperators returns the names of the built-in range operators.
func BuiltinOperators() []string {
	return resolve.Builtins()
}
