package resolve

import (
	"context"
	"fmt"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/textpos"
)

// Operator is a user-supplied range operator. It receives the source, the
// span resolved for its inner query and its numeric parameters, and returns
// the adjusted span.
type Operator interface {
	Apply(ctx context.Context, src string, span engine.Range, params []int) (engine.Range, error)
}

// OperatorFunc adapts a function to the Operator interface.
type OperatorFunc func(ctx context.Context, src string, span engine.Range, params []int) (engine.Range, error)

// Apply calls f.
func (f OperatorFunc) Apply(ctx context.Context, src string, span engine.Range, params []int) (engine.Range, error) {
	return f(ctx, src, span, params)
}

// builtinArity is the number of numeric parameters each built-in range
// operator takes. after and choose are handled before resolution and are
// listed with their own arity for validation.
var builtinArity = map[string]int{
	"upto":       0,
	"context":    2,
	"window":     2,
	"comments":   0,
	"decorators": 0,
	"after":      1,
	"choose":     1,
}

// IsBuiltin reports whether name is a built-in operator.
func IsBuiltin(name string) bool {
	_, ok := builtinArity[name]
	return ok
}

// Builtins returns the names of the built-in operators.
func Builtins() []string {
	return []string{"after", "choose", "comments", "context", "decorators", "upto", "window"}
}

// applyOperator runs the range operator named by call on m.
func (r *Resolver) applyOperator(ctx context.Context, call *query.Query, m Match) (Match, error) {
	params, err := numericParams(call)
	if err != nil {
		return Match{}, err
	}

	switch call.Callee {
	case "upto":
		return upto(r.src, m), nil
	case "context":
		return withContext(r.src, params[0], params[1], m), nil
	case "window":
		return window(r.src, params[0], params[1], m), nil
	case "comments":
		return r.comments(m), nil
	case "decorators":
		return r.decorators(m), nil
	}

	op, ok := r.ops[call.Callee]
	if !ok {
		return Match{}, fmt.Errorf("resolve: %q: %w", call.Callee, ErrUnknownOperator)
	}
	span, err := op.Apply(ctx, r.src, engine.Range{Start: m.Start, End: m.End}, params)
	if err != nil {
		return Match{}, fmt.Errorf("resolve: operator %q: %w", call.Callee, err)
	}
	return m.withSpan(span.Start, span.End, len(r.src)), nil
}

// numericParams returns the parameters following the inner query of call.
// Built-in operators must receive exactly their arity; registered operators
// accept any number. Every parameter must be a Number.
func numericParams(call *query.Query) ([]int, error) {
	args := call.Arguments[1:]
	if want, ok := builtinArity[call.Callee]; ok && len(args) != want {
		return nil, fmt.Errorf("resolve: %s takes %d parameter(s), got %d: %w",
			call.Callee, want, len(args), ErrInvalidArgument)
	}
	params := make([]int, len(args))
	for i, a := range args {
		if a == nil || a.Kind != query.Number {
			return nil, fmt.Errorf("resolve: %s: parameter %d is not a number: %w", call.Callee, i+1, ErrInvalidArgument)
		}
		params[i] = a.Value
	}
	return params, nil
}

// upto collapses m to an insertion point just after the previous non-blank
// character.
func upto(src string, m Match) Match {
	pos := m.Start
	for pos > 0 && textpos.IsSpace(src[pos-1]) {
		pos--
	}
	return m.withSpan(pos, pos, len(src))
}

// withContext widens m by whole lines on either side. A positive count keeps
// the interior newline and drops the boundary one.
func withContext(src string, linesBefore, linesAfter int, m Match) Match {
	start, end := m.Start, m.End
	if linesBefore != 0 {
		start = textpos.MoveByLines(src, -linesBefore, start, linesBefore > 0)
	}
	if linesAfter != 0 {
		end = textpos.MoveByLines(src, linesAfter, end, linesAfter > 0)
	}
	return m.withSpan(start, end, len(src))
}

// window re-anchors m to lines counted from the match's first line. The
// start moves startingLine lines from the match start; the end moves
// endingLine lines from the end of that first line. An endingLine of 0 ends
// the window at the end of the (moved) start line.
func window(src string, startingLine, endingLine int, m Match) Match {
	origin := m.Start
	start := textpos.MoveByLines(src, startingLine, origin, startingLine <= 0)
	if endingLine == 0 {
		return m.withSpan(start, textpos.NextNewline(src, start), len(src))
	}
	eol := textpos.NextNewline(src, origin)
	end := textpos.MoveByLines(src, endingLine, eol, endingLine > 0)
	return m.withSpan(start, end, len(src))
}

// comments widens m over the leading comments of every matched node.
func (r *Resolver) comments(m Match) Match {
	start, end := m.Start, m.End
	for _, n := range m.Nodes {
		span := r.eng.CommentRange(n, r.src, true, false)
		if span.HasStart {
			start = min(start, span.Start)
		}
		if span.HasEnd {
			end = max(end, span.End)
		}
	}
	return m.withSpan(start, end, len(r.src))
}

// decorators widens m over the decorators of every matched node.
func (r *Resolver) decorators(m Match) Match {
	start, end := m.Start, m.End
	for _, n := range m.Nodes {
		decs := r.eng.Decorators(n)
		ranges := make([]engine.Range, len(decs))
		for i, d := range decs {
			ranges[i] = r.eng.NodeToRange(d)
		}
		if ext, ok := engine.Extents(ranges); ok {
			start = min(start, ext.Start)
			end = max(end, ext.End)
		}
	}
	return m.withSpan(start, end, len(r.src))
}
