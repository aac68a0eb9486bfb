package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cq/internal/query"
)

const jsSource = `// greet says hello
function greet(name) {
  return 'hi ' + name;
}

const answer = 42;

class Widget {
  render() {
    return greet('widget');
  }
}

describe('my test', () => {
  it('works', () => {});
});
`

const tsSource = `@Component({ selector: 'app' })
class AppComponent {
  @Input() name: string;
}

interface Shape {
  area(): number;
}
`

const goSource = `package main

// Greeter greets.
type Greeter struct {
	Name string
}

func (g *Greeter) Hello() string {
	return "hello " + g.Name
}
`

// parseWith is a test helper that parses src with the named engine.
func parseWith(t *testing.T, name, src string) (*TreeSitter, AST) {
	t.Helper()
	e, ok := Lookup(name)
	require.True(t, ok, "engine %q not registered", name)
	ast, err := e.Parse(context.Background(), src, nil)
	require.NoError(t, err)
	return e, ast
}

func text(e *TreeSitter, src string, n Node) string {
	r := e.NodeToRange(n)
	return src[r.Start:r.End]
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"javascript", "typescript", "tsx", "go", "babylon", "js", "ts", "golang"} {
		e, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, e, name)
	}

	e, ok := Lookup("babylon")
	require.True(t, ok)
	assert.Equal(t, "javascript", e.Name())

	_, ok = Lookup("cobol")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"go", "javascript", "tsx", "typescript"}, Names())
	assert.Equal(t, DefaultName, Default().Name())
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"app.js", "javascript", true},
		{"app.jsx", "javascript", true},
		{"lib.mjs", "javascript", true},
		{"app.ts", "typescript", true},
		{"app.tsx", "tsx", true},
		{"main.go", "go", true},
		{"path/to/FILE.TS", "typescript", true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Strict(t *testing.T) {
	t.Parallel()

	e := Default()
	_, err := e.Parse(context.Background(), "function (", ParserOptions{"strict": true})
	require.Error(t, err)

	_, err = e.Parse(context.Background(), "function (", nil)
	require.NoError(t, err)
}

func TestFindNodesWithIdentifier_JavaScript(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "javascript", jsSource)
	root := e.InitialRoot(ast)

	nodes := e.FindNodesWithIdentifier(ast, root, query.Ident("greet"))
	require.Len(t, nodes, 1, "the call greet('widget') is a reference, not a binding")
	assert.Contains(t, text(e, jsSource, nodes[0]), "function greet(name) {")

	nodes = e.FindNodesWithIdentifier(ast, root, query.Ident("answer"))
	require.Len(t, nodes, 1)
	assert.Equal(t, "const answer = 42;", text(e, jsSource, nodes[0]))

	nodes = e.FindNodesWithIdentifier(ast, root, query.Ident("nope"))
	assert.Empty(t, nodes)
}

func TestFindNodesWithIdentifier_NestedRoot(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "javascript", jsSource)

	classes := e.FindNodesWithIdentifier(ast, e.InitialRoot(ast), query.Ident("Widget"))
	require.Len(t, classes, 1)

	methods := e.FindNodesWithIdentifier(ast, classes[0], query.Ident("render"))
	require.Len(t, methods, 1)
	assert.Contains(t, text(e, jsSource, methods[0]), "render() {")

	// greet is declared outside Widget.
	assert.Empty(t, e.FindNodesWithIdentifier(ast, classes[0], query.Ident("greet")))
}

func TestFindNodesWithString(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "javascript", jsSource)
	root := e.InitialRoot(ast)

	nodes := e.FindNodesWithString(ast, root, query.Str("my test"))
	require.Len(t, nodes, 1)
	got := text(e, jsSource, nodes[0])
	assert.Contains(t, got, "describe('my test'")
	assert.Contains(t, got, "it('works'")

	nodes = e.FindNodesWithString(ast, root, query.Str("widget"))
	require.Len(t, nodes, 1)
	assert.Equal(t, "greet('widget')", text(e, jsSource, nodes[0]))

	assert.Empty(t, e.FindNodesWithString(ast, root, query.Str("missing")))
}

func TestCommentRange(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "javascript", jsSource)
	root := e.InitialRoot(ast)

	nodes := e.FindNodesWithIdentifier(ast, root, query.Ident("greet"))
	require.Len(t, nodes, 1)

	span := e.CommentRange(nodes[0], jsSource, true, false)
	require.True(t, span.HasStart)
	assert.Equal(t, 0, span.Start)
	assert.Equal(t, "// greet says hello", jsSource[span.Start:span.End])

	nodes = e.FindNodesWithIdentifier(ast, root, query.Ident("answer"))
	require.Len(t, nodes, 1)
	span = e.CommentRange(nodes[0], jsSource, true, false)
	assert.False(t, span.HasStart)
	assert.False(t, span.HasEnd)
}

func TestCommentRange_Trailing(t *testing.T) {
	t.Parallel()
	const src = "const a = 1; // one\nconst b = 2;\n"
	e, ast := parseWith(t, "javascript", src)
	root := e.InitialRoot(ast)

	a := e.FindNodesWithIdentifier(ast, root, query.Ident("a"))
	require.Len(t, a, 1)
	span := e.CommentRange(a[0], src, false, true)
	require.True(t, span.HasEnd)
	assert.Equal(t, len("const a = 1; // one"), span.End)

	// The trailing comment of a is not a leading comment of b.
	b := e.FindNodesWithIdentifier(ast, root, query.Ident("b"))
	require.Len(t, b, 1)
	span = e.CommentRange(b[0], src, true, false)
	assert.False(t, span.HasStart)
}

func TestDecorators_TypeScript(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "typescript", tsSource)
	root := e.InitialRoot(ast)

	classes := e.FindNodesWithIdentifier(ast, root, query.Ident("AppComponent"))
	require.Len(t, classes, 1)
	decs := e.Decorators(classes[0])
	require.Len(t, decs, 1)
	assert.Equal(t, "@Component({ selector: 'app' })", text(e, tsSource, decs[0]))

	fields := e.FindNodesWithIdentifier(ast, classes[0], query.Ident("name"))
	require.Len(t, fields, 1)
	decs = e.Decorators(fields[0])
	require.Len(t, decs, 1)
	assert.Equal(t, "@Input()", text(e, tsSource, decs[0]))

	shapes := e.FindNodesWithIdentifier(ast, root, query.Ident("Shape"))
	require.Len(t, shapes, 1)
	assert.Empty(t, e.Decorators(shapes[0]))
}

func TestFindNodesWithIdentifier_Go(t *testing.T) {
	t.Parallel()
	e, ast := parseWith(t, "go", goSource)
	root := e.InitialRoot(ast)

	types := e.FindNodesWithIdentifier(ast, root, query.Ident("Greeter"))
	require.Len(t, types, 1, "the receiver type is a reference")
	assert.Contains(t, text(e, goSource, types[0]), "type Greeter struct {")

	methods := e.FindNodesWithIdentifier(ast, root, query.Ident("Hello"))
	require.Len(t, methods, 1)
	assert.Contains(t, text(e, goSource, methods[0]), "func (g *Greeter) Hello() string {")

	fields := e.FindNodesWithIdentifier(ast, root, query.Ident("Name"))
	require.Len(t, fields, 1)
	assert.Equal(t, "Name string", text(e, goSource, fields[0]))

	span := e.CommentRange(types[0], goSource, true, false)
	require.True(t, span.HasStart)
	assert.Equal(t, "// Greeter greets.", goSource[span.Start:span.End])

	assert.Empty(t, e.Decorators(types[0]))
}

func TestExtents(t *testing.T) {
	t.Parallel()

	_, ok := Extents(nil)
	assert.False(t, ok)

	r, ok := Extents([]Range{{Start: 10, End: 12}, {Start: 3, End: 5}, {Start: 7, End: 20}})
	require.True(t, ok)
	assert.Equal(t, Range{Start: 3, End: 20}, r)
}

func TestNilInputs(t *testing.T) {
	t.Parallel()
	e := Default()

	assert.Nil(t, e.InitialRoot(nil))
	assert.Empty(t, e.FindNodesWithIdentifier(nil, nil, query.Ident("x")))
	assert.Equal(t, Range{}, e.NodeToRange(nil))
	assert.Equal(t, CommentSpan{}, e.CommentRange(nil, "", true, true))
	assert.Nil(t, e.Decorators(nil))
}
