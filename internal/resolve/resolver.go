// Package resolve turns a query tree into a byte range of source text. It
// walks the tree recursively, searching the AST through an engine.Engine,
// computing line positions and applying range operators.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/textpos"
)

// Match is the resolution of a single query: the span [Start, End) of the
// source, its text and the AST nodes that produced it.
type Match struct {
	Code  string        `json:"code"`
	Nodes []engine.Node `json:"-"`
	Start int           `json:"start"`
	End   int           `json:"end"`
}

// withSpan returns m moved to [start, end), clamped to the source and never
// inverted.
func (m Match) withSpan(start, end, size int) Match {
	start = min(max(start, 0), size)
	end = min(max(end, start), size)
	m.Start, m.End = start, end
	return m
}

// Result is the aggregate of a list of queries. StartLine and EndLine are
// 1-based and inclusive.
type Result struct {
	Match
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Resolver resolves queries against one parsed source. A Resolver is cheap
// to build and is not meant to outlive the AST it was built for.
type Resolver struct {
	eng    engine.Engine
	ast    engine.AST
	src    string
	logger *slog.Logger
	ops    map[string]Operator
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug tracing of candidate selection
// and backtracking.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOperators registers additional range operators. Names of built-in
// operators are ignored.
func WithOperators(ops map[string]Operator) Option {
	return func(r *Resolver) {
		for name, op := range ops {
			if IsBuiltin(name) {
				continue
			}
			r.ops[name] = op
		}
	}
}

// New returns a Resolver over ast, the tree eng parsed from src.
func New(eng engine.Engine, ast engine.AST, src string, opts ...Option) *Resolver {
	r := &Resolver{
		eng:    eng,
		ast:    ast,
		src:    src,
		logger: slog.New(slog.DiscardHandler),
		ops:    make(map[string]Operator),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Root returns the node a top-level resolution starts from.
func (r *Resolver) Root() engine.Node {
	return r.eng.InitialRoot(r.ast)
}

// ResolveList resolves each query independently against root and folds the
// results: codes are concatenated in order and the span covers the union of
// all matches.
func (r *Resolver) ResolveList(ctx context.Context, root engine.Node, qs []*query.Query, rc Context) (Result, error) {
	if len(qs) == 0 {
		return Result{}, ErrEmptyQuery
	}

	var (
		res  Result
		code strings.Builder
	)
	for i, q := range qs {
		m, err := r.Resolve(ctx, root, q, rc)
		if err != nil {
			return Result{}, err
		}
		startLine := textpos.LineOf(r.src, m.Start)
		endLine := textpos.LineOf(r.src, m.End)
		code.WriteString(m.Code)
		res.Nodes = append(res.Nodes, m.Nodes...)
		if i == 0 {
			res.Start, res.End = m.Start, m.End
			res.StartLine, res.EndLine = startLine, endLine
			continue
		}
		res.Start = min(res.Start, m.Start)
		res.End = max(res.End, m.End)
		res.StartLine = min(res.StartLine, startLine)
		res.EndLine = max(res.EndLine, endLine)
	}
	res.Code = code.String()
	return res, nil
}

// Resolve resolves a single query against root.
func (r *Resolver) Resolve(ctx context.Context, root engine.Node, q *query.Query, rc Context) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}
	if q == nil {
		return Match{}, fmt.Errorf("resolve: nil query: %w", ErrInvalidArgument)
	}

	switch q.Kind {
	case query.Identifier, query.String:
		return r.resolveSearch(ctx, root, q, rc)
	case query.Range:
		return r.resolveRange(ctx, root, q, rc)
	case query.LineNumber:
		return r.resolveLine(q)
	case query.CallExpression:
		return r.resolveCall(ctx, root, q, rc)
	case query.Number:
		return Match{}, fmt.Errorf("resolve: number %d outside an operator call: %w", q.Value, ErrInvalidArgument)
	default:
		return Match{}, fmt.Errorf("resolve: query kind %s: %w", q.Kind, ErrInvalidArgument)
	}
}

func (r *Resolver) resolveSearch(ctx context.Context, root engine.Node, q *query.Query, rc Context) (Match, error) {
	var nodes []engine.Node
	if q.Kind == query.Identifier {
		nodes = r.eng.FindNodesWithIdentifier(r.ast, root, q)
	} else {
		nodes = r.eng.FindNodesWithString(r.ast, root, q)
	}

	// The index selects among the innermost candidates only; while children
	// are pending every candidate scope is a first choice.
	idx := rc.NodeIdx
	if len(q.Children) > 0 {
		idx = 0
	}
	r.logger.Debug("candidates", "query", q.String(), "count", len(nodes), "index", idx, "after", rc.After, "has_after", rc.HasAfter)

	chosen, found := r.choose(nodes, idx, rc)
	if !found {
		return Match{}, &NoMatchError{Query: q, Index: idx}
	}

	if len(q.Children) == 0 {
		start, end := r.lineRange(chosen)
		return Match{Code: r.src[start:end], Nodes: []engine.Node{chosen}, Start: start, End: end}, nil
	}

	var lastErr error
	for i, n := range nodes {
		res, err := r.ResolveList(ctx, n, q.Children, rc)
		if err == nil {
			return res.Match, nil
		}
		if !IsNoMatch(err) {
			return Match{}, err
		}
		r.logger.Debug("backtrack", "query", q.String(), "candidate", i, "err", err)
		lastErr = err
	}
	return Match{}, lastErr
}

// choose picks the first candidate starting at or past rc.After when set,
// otherwise the idx-th candidate.
func (r *Resolver) choose(nodes []engine.Node, idx int, rc Context) (engine.Node, bool) {
	if rc.HasAfter {
		for _, n := range nodes {
			if r.eng.NodeToRange(n).Start >= rc.After {
				return n, true
			}
		}
		return nil, false
	}
	if idx < 0 || idx >= len(nodes) {
		return nil, false
	}
	return nodes[idx], true
}

// lineRange widens a node's span to whole lines: back to the start of its
// first line and forward to the end of its last line, newline excluded.
func (r *Resolver) lineRange(n engine.Node) (start, end int) {
	rg := r.eng.NodeToRange(n)
	s := min(max(rg.Start, 0), len(r.src))
	e := min(max(rg.End, s), len(r.src))
	start = strings.LastIndexByte(r.src[:s], '\n') + 1
	end = textpos.NextNewline(r.src, e)
	return start, end
}

func (r *Resolver) resolveRange(ctx context.Context, root engine.Node, q *query.Query, rc Context) (Match, error) {
	first, err := r.Resolve(ctx, root, q.Start, rc)
	if err != nil {
		return Match{}, err
	}
	last, err := r.Resolve(ctx, root, q.End, rc.WithAfter(first.Start))
	if err != nil {
		return Match{}, err
	}
	if last.End < first.Start {
		return Match{}, fmt.Errorf("resolve: range %s ends at %d before it starts at %d: %w",
			q, last.End, first.Start, ErrInvalidArgument)
	}

	nodes := make([]engine.Node, 0, len(first.Nodes)+len(last.Nodes))
	nodes = append(nodes, first.Nodes...)
	nodes = append(nodes, last.Nodes...)
	return Match{
		Code:  r.src[first.Start:last.End],
		Nodes: nodes,
		Start: first.Start,
		End:   last.End,
	}, nil
}

func (r *Resolver) resolveLine(q *query.Query) (Match, error) {
	if q.Symbol != "" {
		if q.Symbol != query.SymbolEOF {
			return Match{}, fmt.Errorf("resolve: line %q: %w", q.Symbol, ErrInvalidLine)
		}
		return Match{Start: len(r.src), End: len(r.src)}, nil
	}
	if q.Value < 1 {
		return Match{}, fmt.Errorf("resolve: line %d: lines start at 1: %w", q.Value, ErrInvalidLine)
	}

	lines := strings.Split(r.src, "\n")
	if q.Value > len(lines) {
		return Match{}, fmt.Errorf("resolve: line %d: source has %d line(s): %w", q.Value, len(lines), ErrInvalidLine)
	}
	start := 0
	for _, l := range lines[:q.Value-1] {
		start += len(l) + 1
	}
	end := start + len(lines[q.Value-1])
	return Match{Code: r.src[start:end], Start: start, End: end}, nil
}

func (r *Resolver) resolveCall(ctx context.Context, root engine.Node, q *query.Query, rc Context) (Match, error) {
	if len(q.Arguments) == 0 {
		return Match{}, fmt.Errorf("resolve: %s without an inner query: %w", q.Callee, ErrInvalidArgument)
	}
	inner := q.Arguments[0]

	var (
		m   Match
		err error
	)
	switch q.Callee {
	case "after":
		if len(q.Arguments) != 2 {
			return Match{}, fmt.Errorf("resolve: after takes one goalpost query, got %d: %w",
				len(q.Arguments)-1, ErrInvalidArgument)
		}
		goal, gerr := r.Resolve(ctx, root, q.Arguments[1], rc)
		if gerr != nil {
			return Match{}, gerr
		}
		m, err = r.Resolve(ctx, root, inner, rc.WithAfter(goal.End))
	case "choose":
		params, perr := numericParams(q)
		if perr != nil {
			return Match{}, perr
		}
		m, err = r.Resolve(ctx, root, inner, rc.WithNodeIdx(params[0]))
	default:
		if !IsBuiltin(q.Callee) {
			if _, ok := r.ops[q.Callee]; !ok {
				return Match{}, fmt.Errorf("resolve: %q: %w", q.Callee, ErrUnknownOperator)
			}
		}
		m, err = r.Resolve(ctx, root, inner, rc)
		if err != nil {
			return Match{}, err
		}
		m, err = r.applyOperator(ctx, q, m)
	}
	if err != nil {
		return Match{}, err
	}

	m.Code = r.src[m.Start:m.End]
	return m, nil
}
