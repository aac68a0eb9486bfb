package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError reports a syntax error in a textual query.
type ParseError struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("query: parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Punct", Pattern: `[.:,()\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[listNode](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)

// Grammar nodes. They are converted into Query trees right after parsing
// and never leave this file.

type listNode struct {
	Exprs []*exprNode `@@ ( "," @@ )*`
}

type exprNode struct {
	Start *termNode `@@`
	End   *termNode `( ":" @@ )?`
}

type termNode struct {
	Primary *primaryNode `@@`
	Chain   []*chainNode `@@*`
}

type chainNode struct {
	Callee string       `"." @Ident "("`
	Params []*paramNode `( @@ ( "," @@ )* )? ")"`
}

type primaryNode struct {
	Call   *callNode   `  @@`
	Line   *lineNode   `| @@`
	Search *searchNode `| @@`
}

type callNode struct {
	Callee string       `@Ident "("`
	Inner  *exprNode    `@@`
	Params []*paramNode `( "," @@ )* ")"`
}

type paramNode struct {
	Int  *int      `  @Int`
	Expr *exprNode `| @@`
}

type lineNode struct {
	Value string `"[" @( Int | "EOF" ) "]"`
}

type searchNode struct {
	Ident    *string       `( "."? @Ident (?! "(" )`
	String   *string       `| @String )`
	Children []*searchNode `@@*`
}

// Parse parses a textual query into its list of top-level queries. A single
// selector yields a one-element list.
func Parse(input string) ([]*Query, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Message: "empty query", Line: 1, Column: 1}
	}
	ast, err := queryParser.ParseString("", input)
	if err != nil {
		return nil, toParseError(err)
	}
	out := make([]*Query, 0, len(ast.Exprs))
	for _, e := range ast.Exprs {
		q, err := e.build()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level query literals.
func MustParse(input string) []*Query {
	qs, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return qs
}

func toParseError(err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return &ParseError{Message: perr.Message(), Line: pos.Line, Column: pos.Column}
	}
	return &ParseError{Message: err.Error(), Line: 1, Column: 1}
}

func (e *exprNode) build() (*Query, error) {
	start, err := e.Start.build()
	if err != nil {
		return nil, err
	}
	if e.End == nil {
		return start, nil
	}
	end, err := e.End.build()
	if err != nil {
		return nil, err
	}
	return RangeOf(start, end), nil
}

// A chained operator wraps everything to its left: ".foo.context(1, 2)" is
// context(.foo, 1, 2).
func (t *termNode) build() (*Query, error) {
	q, err := t.Primary.build()
	if err != nil {
		return nil, err
	}
	for _, c := range t.Chain {
		params, err := buildParams(c.Params)
		if err != nil {
			return nil, err
		}
		q = Call(c.Callee, append([]*Query{q}, params...)...)
	}
	return q, nil
}

func (p *primaryNode) build() (*Query, error) {
	switch {
	case p.Call != nil:
		inner, err := p.Call.Inner.build()
		if err != nil {
			return nil, err
		}
		params, err := buildParams(p.Call.Params)
		if err != nil {
			return nil, err
		}
		return Call(p.Call.Callee, append([]*Query{inner}, params...)...), nil
	case p.Line != nil:
		if p.Line.Value == SymbolEOF {
			return EOF(), nil
		}
		n, err := strconv.Atoi(p.Line.Value)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid line number %q", p.Line.Value), Line: 1, Column: 1}
		}
		return Line(n), nil
	default:
		return p.Search.build()
	}
}

func (s *searchNode) build() (*Query, error) {
	var q *Query
	if s.Ident != nil {
		q = Ident(*s.Ident)
	} else {
		v, err := unquote(*s.String)
		if err != nil {
			return nil, err
		}
		q = Str(v)
	}
	for _, c := range s.Children {
		child, err := c.build()
		if err != nil {
			return nil, err
		}
		q.Children = append(q.Children, child)
	}
	return q, nil
}

func buildParams(params []*paramNode) ([]*Query, error) {
	out := make([]*Query, 0, len(params))
	for _, p := range params {
		if p.Int != nil {
			out = append(out, Num(*p.Int))
			continue
		}
		q, err := p.Expr.build()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// unquote strips the quotes of a single- or double-quoted string token and
// resolves backslash escapes.
func unquote(tok string) (string, error) {
	if len(tok) < 2 {
		return "", &ParseError{Message: fmt.Sprintf("malformed string %s", tok), Line: 1, Column: 1}
	}
	if tok[0] == '"' {
		s, err := strconv.Unquote(tok)
		if err != nil {
			return "", &ParseError{Message: fmt.Sprintf("malformed string %s: %v", tok, err), Line: 1, Column: 1}
		}
		return s, nil
	}
	body := tok[1 : len(tok)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}
