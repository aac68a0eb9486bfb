// Package engine defines the capability set cq needs from a source-language
// parser and provides tree-sitter backed implementations of it.
//
// The resolver only ever touches AST nodes through an Engine, so AST and
// Node are opaque handles here: each implementation decides what they hold.
package engine

import (
	"context"

	"github.com/jward/cq/internal/query"
)

// AST is an engine-specific parsed syntax tree.
type AST any

// Node is an engine-specific handle to one node of an AST.
type Node any

// Range is a half-open byte span [Start, End) into the source.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CommentSpan is the extent of comments attached to a node. Either side may
// be absent.
type CommentSpan struct {
	Start    int
	End      int
	HasStart bool
	HasEnd   bool
}

// ParserOptions are forwarded untouched from the caller to Engine.Parse.
type ParserOptions map[string]any

// Bool returns the boolean option key, or false when it is unset or not a
// bool.
func (o ParserOptions) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// Engine is the capability set the resolver needs from a parser. Searches
// never fail: no match is an empty result.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string

	// Parse parses src into an AST.
	Parse(ctx context.Context, src string, opts ParserOptions) (AST, error)

	// InitialRoot returns the node a top-level search starts from.
	InitialRoot(ast AST) Node

	// FindNodesWithIdentifier returns, in source order, the nodes below root
	// bound to the name q.Matcher.
	FindNodesWithIdentifier(ast AST, root Node, q *query.Query) []Node

	// FindNodesWithString returns, in source order, the nodes below root
	// built around a string literal whose value is q.Matcher.
	FindNodesWithString(ast AST, root Node, q *query.Query) []Node

	// NodeToRange returns the node's own byte span.
	NodeToRange(n Node) Range

	// CommentRange returns the span of the comments attached before
	// (leading) and/or after (trailing) the node.
	CommentRange(n Node, src string, leading, trailing bool) CommentSpan

	// Decorators returns the decorator nodes attached to n.
	Decorators(n Node) []Node
}

// Extents returns the smallest range covering every range in rs. ok is false
// when rs is empty.
func Extents(rs []Range) (r Range, ok bool) {
	for i, cur := range rs {
		if i == 0 {
			r = cur
			continue
		}
		r.Start = min(r.Start, cur.Start)
		r.End = max(r.End, cur.End)
	}
	return r, len(rs) > 0
}
