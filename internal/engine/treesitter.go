package engine

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cq/internal/query"
)

// grammar holds the node-type tables that teach the generic tree-sitter
// engine how a language binds names.
type grammar struct {
	name     string
	language *sitter.Language

	// identifiers are the node types that can carry a bound name.
	identifiers map[string]bool
	// declarations maps a declaring node type to the field holding its name.
	declarations map[string]string
	// lifts maps a declaration type to parent types that stand for it when
	// it is the parent's only child of that type.
	lifts map[string][]string

	strings   map[string]bool
	calls     map[string]bool
	arguments map[string]bool
	pairs     map[string]bool
	exports   map[string]bool

	comment   string
	decorator string
}

// Tree is the AST produced by a TreeSitter engine.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Root returns the tree's root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// TreeSitter is an Engine backed by a tree-sitter grammar. It holds no
// mutable state and is safe for concurrent use.
type TreeSitter struct {
	g *grammar
}

var _ Engine = (*TreeSitter)(nil)

// Name returns the engine's registry name.
func (e *TreeSitter) Name() string {
	return e.g.name
}

// Parse parses src with the engine's grammar. With the "strict" option set,
// a tree containing syntax errors is rejected.
func (e *TreeSitter) Parse(ctx context.Context, src string, opts ParserOptions) (AST, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.g.language)

	b := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, b)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: parse: %w", e.g.name, err)
	}
	if opts.Bool("strict") && tree.RootNode().HasError() {
		return nil, fmt.Errorf("engine: %s: source contains syntax errors", e.g.name)
	}
	return &Tree{tree: tree, src: b}, nil
}

// InitialRoot returns the program node.
func (e *TreeSitter) InitialRoot(ast AST) Node {
	t, ok := ast.(*Tree)
	if !ok || t == nil {
		return nil
	}
	return t.Root()
}

// FindNodesWithIdentifier returns the declarations below root whose name is
// q.Matcher. A declaration that is the only one of its statement stands in
// for that statement, so `const foo = 1` yields the whole lexical
// declaration.
func (e *TreeSitter) FindNodesWithIdentifier(ast AST, root Node, q *query.Query) []Node {
	t, rn := e.unwrap(ast, root)
	if rn == nil {
		return nil
	}
	var out []Node
	walkDescendants(rn, func(n *sitter.Node) {
		if !e.g.identifiers[n.Type()] || n.Content(t.src) != q.Matcher {
			return
		}
		if bound := e.boundDeclaration(n); bound != nil {
			out = append(out, bound)
		}
	})
	return out
}

// FindNodesWithString returns the nodes built around string literals whose
// unquoted text is q.Matcher: the call when the literal is a direct call
// argument, the pair when it is an object key, otherwise the literal.
func (e *TreeSitter) FindNodesWithString(ast AST, root Node, q *query.Query) []Node {
	t, rn := e.unwrap(ast, root)
	if rn == nil {
		return nil
	}
	var out []Node
	walkDescendants(rn, func(n *sitter.Node) {
		if !e.g.strings[n.Type()] || unquoteLiteral(n.Content(t.src)) != q.Matcher {
			return
		}
		out = append(out, e.stringOwner(n))
	})
	return out
}

// NodeToRange returns the node's byte span.
func (e *TreeSitter) NodeToRange(n Node) Range {
	sn := asNode(n)
	if sn == nil {
		return Range{}
	}
	return Range{Start: int(sn.StartByte()), End: int(sn.EndByte())}
}

// CommentRange returns the span of comments attached to n. Leading comments
// are the run of comment siblings directly before the node (decorators in
// between are skipped); a comment sharing a line with the previous statement
// belongs to that statement. Trailing comments start on the node's last line.
func (e *TreeSitter) CommentRange(n Node, _ string, leading, trailing bool) CommentSpan {
	sn := asNode(n)
	if sn == nil {
		return CommentSpan{}
	}
	target := e.attachTarget(sn)

	var span CommentSpan
	if leading {
		if first, last := e.leadingComments(target); first != nil {
			span.Start, span.HasStart = int(first.StartByte()), true
			span.End, span.HasEnd = int(last.EndByte()), true
		}
	}
	if trailing {
		if last := e.trailingComment(target); last != nil {
			span.End, span.HasEnd = int(last.EndByte()), true
		}
	}
	return span
}

// Decorators returns the decorators attached to n in source order: decorator
// siblings directly before it, those of an enclosing export statement and
// its own decorator children.
func (e *TreeSitter) Decorators(n Node) []Node {
	sn := asNode(n)
	if sn == nil || e.g.decorator == "" {
		return nil
	}

	var before []*sitter.Node
	for s := sn.PrevNamedSibling(); s != nil; s = s.PrevNamedSibling() {
		typ := s.Type()
		if typ == e.g.decorator {
			before = append(before, s)
			continue
		}
		if typ != e.g.comment {
			break
		}
	}

	var out []Node
	for i := len(before) - 1; i >= 0; i-- {
		out = append(out, before[i])
	}
	if p := sn.Parent(); p != nil && e.g.exports[p.Type()] {
		out = append(out, e.childrenOfType(p, e.g.decorator)...)
	}
	out = append(out, e.childrenOfType(sn, e.g.decorator)...)
	return out
}

func (e *TreeSitter) unwrap(ast AST, root Node) (*Tree, *sitter.Node) {
	t, ok := ast.(*Tree)
	if !ok || t == nil {
		return nil, nil
	}
	rn := asNode(root)
	if rn == nil {
		rn = t.Root()
	}
	return t, rn
}

// boundDeclaration returns the declaration that binds identifier n, or nil
// when n is a plain reference.
func (e *TreeSitter) boundDeclaration(n *sitter.Node) *sitter.Node {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	field, ok := e.g.declarations[parent.Type()]
	if !ok {
		return nil
	}
	named := parent.ChildByFieldName(field)
	if named == nil || !sameNode(named, n) {
		return nil
	}
	return e.lift(parent)
}

// lift replaces a declaration by its enclosing statement when the statement
// declares nothing else.
func (e *TreeSitter) lift(decl *sitter.Node) *sitter.Node {
	parents, ok := e.g.lifts[decl.Type()]
	if !ok {
		return decl
	}
	p := decl.Parent()
	if p == nil {
		return decl
	}
	for _, typ := range parents {
		if p.Type() == typ && len(e.childrenOfType(p, decl.Type())) == 1 {
			return p
		}
	}
	return decl
}

func (e *TreeSitter) stringOwner(lit *sitter.Node) *sitter.Node {
	parent := lit.Parent()
	if parent == nil {
		return lit
	}
	if e.g.arguments[parent.Type()] {
		if call := parent.Parent(); call != nil && e.g.calls[call.Type()] {
			return call
		}
	}
	if e.g.pairs[parent.Type()] {
		if key := parent.ChildByFieldName("key"); key != nil && sameNode(key, lit) {
			return parent
		}
	}
	return lit
}

// attachTarget returns the node comments attach to: a declaration wrapped
// in an export statement shares the export's comments.
func (e *TreeSitter) attachTarget(n *sitter.Node) *sitter.Node {
	for {
		p := n.Parent()
		if p == nil || !e.g.exports[p.Type()] {
			return n
		}
		n = p
	}
}

func (e *TreeSitter) leadingComments(target *sitter.Node) (first, last *sitter.Node) {
	s := target.PrevSibling()
	for s != nil && e.g.decorator != "" && s.Type() == e.g.decorator {
		s = s.PrevSibling()
	}

	// nearest first
	var comments []*sitter.Node
	for s != nil && s.Type() == e.g.comment {
		comments = append(comments, s)
		s = s.PrevSibling()
	}
	if len(comments) == 0 {
		return nil, nil
	}
	farthest := comments[len(comments)-1]
	if s != nil && farthest.StartPoint().Row == s.EndPoint().Row {
		comments = comments[:len(comments)-1]
	}
	if len(comments) == 0 {
		return nil, nil
	}
	return comments[len(comments)-1], comments[0]
}

func (e *TreeSitter) trailingComment(target *sitter.Node) *sitter.Node {
	row := target.EndPoint().Row
	var last *sitter.Node
	for s := target.NextSibling(); s != nil && s.Type() == e.g.comment && s.StartPoint().Row == row; s = s.NextSibling() {
		last = s
	}
	return last
}

func (e *TreeSitter) childrenOfType(n *sitter.Node, typ string) []Node {
	var out []Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

// walkDescendants visits every named node below n in pre-order, which is
// source order.
func walkDescendants(n *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		visit(c)
		walkDescendants(c, visit)
	}
}

func asNode(n Node) *sitter.Node {
	sn, _ := n.(*sitter.Node)
	return sn
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// unquoteLiteral strips the delimiters of a string literal's source text.
func unquoteLiteral(text string) string {
	if len(text) < 2 {
		return text
	}
	switch text[0] {
	case '"', '\'', '`':
		if text[len(text)-1] == text[0] {
			return text[1 : len(text)-1]
		}
	}
	return text
}
