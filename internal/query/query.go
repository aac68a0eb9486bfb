// Package query defines the query tree resolved by cq and the parser that
// builds it from the textual selector language.
package query

import (
	"strconv"
	"strings"
)

// Kind tags the variant held by a Query.
type Kind int

const (
	// Identifier matches AST nodes bound to a name.
	Identifier Kind = iota + 1
	// String matches AST nodes representing a string literal.
	String
	// Range spans from the start of Start's match to the end of End's match.
	Range
	// LineNumber is a one-indexed line reference or the EOF symbol.
	LineNumber
	// CallExpression applies an operator to its first argument.
	CallExpression
	// Number is an integer operator parameter.
	Number
)

// SymbolEOF is the LineNumber symbol denoting the end of the source.
const SymbolEOF = "EOF"

func (k Kind) String() string {
	switch k {
	case Identifier:
		return "IDENTIFIER"
	case String:
		return "STRING"
	case Range:
		return "RANGE"
	case LineNumber:
		return "LINE_NUMBER"
	case CallExpression:
		return "CALL_EXPRESSION"
	case Number:
		return "NUMBER"
	default:
		return "UNKNOWN"
	}
}

// Query is a node of the query tree. Which fields are meaningful depends on
// Kind:
//
//   - Identifier, String: Matcher and optional Children
//   - Range: Start and End
//   - LineNumber: Value, or Symbol when set
//   - CallExpression: Callee and Arguments (the first is the inner query)
//   - Number: Value
type Query struct {
	Kind      Kind     `json:"type"`
	Matcher   string   `json:"matcher,omitempty"`
	Children  []*Query `json:"children,omitempty"`
	Start     *Query   `json:"start,omitempty"`
	End       *Query   `json:"end,omitempty"`
	Value     int      `json:"value,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Callee    string   `json:"callee,omitempty"`
	Arguments []*Query `json:"arguments,omitempty"`
}

// Ident returns an Identifier query, optionally nesting children to resolve
// inside the matched node.
func Ident(name string, children ...*Query) *Query {
	return &Query{Kind: Identifier, Matcher: name, Children: children}
}

// Str returns a String query.
func Str(value string, children ...*Query) *Query {
	return &Query{Kind: String, Matcher: value, Children: children}
}

// RangeOf returns a Range query from start to end.
func RangeOf(start, end *Query) *Query {
	return &Query{Kind: Range, Start: start, End: end}
}

// Line returns a LineNumber query for the one-indexed line n.
func Line(n int) *Query {
	return &Query{Kind: LineNumber, Value: n}
}

// LineSymbol returns a symbolic LineNumber query such as EOF.
func LineSymbol(symbol string) *Query {
	return &Query{Kind: LineNumber, Symbol: symbol}
}

// EOF returns the LineNumber query for the end of the source.
func EOF() *Query {
	return LineSymbol(SymbolEOF)
}

// Call returns a CallExpression query.
func Call(callee string, args ...*Query) *Query {
	return &Query{Kind: CallExpression, Callee: callee, Arguments: args}
}

// Num returns a Number parameter.
func Num(n int) *Query {
	return &Query{Kind: Number, Value: n}
}

// String renders q in the textual query language. For trees produced by
// Parse, parsing the result yields an equivalent tree.
func (q *Query) String() string {
	if q == nil {
		return "<nil>"
	}
	var b strings.Builder
	q.write(&b)
	return b.String()
}

func (q *Query) write(b *strings.Builder) {
	switch q.Kind {
	case Identifier:
		b.WriteByte('.')
		b.WriteString(q.Matcher)
		q.writeChildren(b)
	case String:
		b.WriteString(strconv.Quote(q.Matcher))
		q.writeChildren(b)
	case Range:
		q.Start.write(b)
		b.WriteByte(':')
		q.End.write(b)
	case LineNumber:
		b.WriteByte('[')
		if q.Symbol != "" {
			b.WriteString(q.Symbol)
		} else {
			b.WriteString(strconv.Itoa(q.Value))
		}
		b.WriteByte(']')
	case CallExpression:
		b.WriteString(q.Callee)
		b.WriteByte('(')
		for i, arg := range q.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			arg.write(b)
		}
		b.WriteByte(')')
	case Number:
		b.WriteString(strconv.Itoa(q.Value))
	default:
		b.WriteString("<invalid>")
	}
}

// Children nest with whitespace: ".Foo .bar". Only single-child chains have
// a textual form; sibling children are written one after another.
func (q *Query) writeChildren(b *strings.Builder) {
	for _, c := range q.Children {
		b.WriteByte(' ')
		c.write(b)
	}
}

// List renders a list of top-level queries separated by commas.
func List(qs []*Query) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return strings.Join(parts, ", ")
}
