package cq

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cq/internal/engine"
)

const growScript = `
n := args[0]
s := move_lines(0 - n, start, true)
result := {"start": s, "end": end}
result
`

func operatorsFS(script string) fstest.MapFS {
	return fstest.MapFS{
		"grow.risor": {Data: []byte(script)},
	}
}

func newTestCropper(t *testing.T, opts ...CropperOption) *Cropper {
	t.Helper()
	c, err := NewCropper(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cq.db")
}

func TestNewCropper_NoCache(t *testing.T) {
	t.Parallel()
	c := newTestCropper(t)

	res, err := c.Crop(context.Background(), twoFuncs, ".bar")
	require.NoError(t, err)
	assert.Equal(t, "function bar() {}", res.Code)

	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, c.OperatorsChanged())
}

func TestNewCropper_InvalidCachePath(t *testing.T) {
	t.Parallel()
	_, err := NewCropper(WithCache("/nonexistent/dir/cq.db"))
	require.Error(t, err)
}

func TestCropper_CacheHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestCropper(t, WithCache(cachePath(t)))

	first, err := c.Crop(ctx, twoFuncs, ".bar")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Nodes)

	second, err := c.Crop(ctx, twoFuncs, ".bar")
	require.NoError(t, err)
	assert.Nil(t, second.Nodes, "cached crops carry no nodes")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Start, second.Start)
	assert.Equal(t, first.End, second.End)
	assert.Equal(t, first.StartLine, second.StartLine)
	assert.Equal(t, first.EndLine, second.EndLine)

	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Options that change the outcome get their own entries.
	_, err = c.Crop(ctx, twoFuncs, ".bar", WithUndent(true))
	require.NoError(t, err)
	_, err = c.Crop(ctx, twoFuncs, ".foo")
	require.NoError(t, err)
	n, err = c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	removed, err := c.ClearCache()
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

func TestCropper_Forget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestCropper(t, WithCache(cachePath(t)))
	const other = "function baz() {}\n"

	for _, q := range []string{".foo", ".bar"} {
		_, err := c.Crop(ctx, twoFuncs, q)
		require.NoError(t, err)
	}
	_, err := c.Crop(ctx, other, ".baz")
	require.NoError(t, err)

	n, err := c.CachedCrops(twoFuncs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := c.Forget(twoFuncs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = c.CachedCrops(twoFuncs)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	noCache := newTestCropper(t)
	removed, err = noCache.Forget(other)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCropper_CachePersists(t *testing.T) {
	t.Parallel()
	path := cachePath(t)

	c, err := NewCropper(WithCache(path))
	require.NoError(t, err)
	_, err = c.Crop(context.Background(), twoFuncs, ".bar")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c = newTestCropper(t, WithCache(path))
	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCropper_ScriptedOperators(t *testing.T) {
	t.Parallel()
	c := newTestCropper(t, WithOperatorsFS(operatorsFS(growScript)))

	res, err := c.Crop(context.Background(), twoFuncs, "grow(.bar, 1)")
	require.NoError(t, err)
	assert.Equal(t, "function foo() {}\nfunction bar() {}", res.Code)
	assert.Equal(t, 0, res.Start)

	assert.Contains(t, c.Operators(), "grow")
	assert.Contains(t, c.Operators(), "upto")

	_, err = Crop(context.Background(), twoFuncs, "grow(.bar, 1)")
	require.ErrorIs(t, err, ErrUnknownOperator, "scripted operators belong to the Cropper")
}

func TestCropper_OperatorsDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grow.risor"), []byte(growScript), 0o644))

	c := newTestCropper(t, WithOperatorsDir(dir))
	res, err := c.Crop(context.Background(), twoFuncs, ".bar.grow(1)")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Start)
}

func TestCropper_OperatorsChangeClearsCache(t *testing.T) {
	t.Parallel()
	path := cachePath(t)
	ctx := context.Background()

	c, err := NewCropper(WithCache(path), WithOperatorsFS(operatorsFS(growScript)))
	require.NoError(t, err)
	_, err = c.Crop(ctx, twoFuncs, "grow(.bar, 1)")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// Same scripts: the cache survives.
	c, err = NewCropper(WithCache(path), WithOperatorsFS(operatorsFS(growScript)))
	require.NoError(t, err)
	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, c.Close())

	// Edited script: cached crops may be stale and are dropped.
	edited := growScript + "\n"
	c = newTestCropper(t, WithCache(path), WithOperatorsFS(operatorsFS(edited)))
	n, err = c.CacheSize()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, c.OperatorsChanged())
}

func TestCropper_CacheKeyDistinguishesTrees(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const src = "function a() { function b() {} function c() {} }\n"

	// Each pair renders to the same query text but is a different tree.
	trees := []*Query{
		Ident("a", Ident("b"), Ident("c")),
		Ident("a", Ident("b", Ident("c"))),
		RangeOf(RangeOf(Ident("a"), Ident("b")), Ident("c")),
		RangeOf(Ident("a"), RangeOf(Ident("b"), Ident("c"))),
	}
	assert.Equal(t, trees[0].String(), trees[1].String())
	assert.Equal(t, trees[2].String(), trees[3].String())

	c := newTestCropper(t, WithCache(cachePath(t)))
	for i, q := range trees {
		want, wantErr := CropQueries(ctx, src, []*Query{q})
		got, err := c.CropQueries(ctx, src, []*Query{q})
		if wantErr != nil {
			require.Error(t, err, "tree %d", i)
			assert.Equal(t, IsNoMatch(wantErr), IsNoMatch(err), "tree %d", i)
			continue
		}
		require.NoError(t, err, "tree %d", i)
		assert.Equal(t, want.Code, got.Code, "tree %d", i)
		assert.Equal(t, want.Start, got.Start, "tree %d", i)
		assert.Equal(t, want.End, got.End, "tree %d", i)
	}

	// The nested chain has no .c inside .b, whatever was cached before it.
	_, err := c.CropQueries(ctx, src, []*Query{trees[1]})
	require.Error(t, err)
	assert.True(t, IsNoMatch(err))
}

// blindEngine is a JavaScript engine that never finds identifiers. It shares
// the built-in engine's name.
type blindEngine struct {
	Engine
}

func (blindEngine) FindNodesWithIdentifier(engine.AST, engine.Node, *Query) []engine.Node {
	return nil
}

func TestCropper_CustomEngineBypassesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestCropper(t, WithCache(cachePath(t)))

	res, err := c.Crop(ctx, twoFuncs, ".bar")
	require.NoError(t, err)
	assert.Equal(t, "function bar() {}", res.Code)

	blind := blindEngine{Engine: engine.Default()}
	require.Equal(t, engine.Default().Name(), blind.Name())
	_, err = c.Crop(ctx, twoFuncs, ".bar", WithEngine(blind))
	require.Error(t, err)
	assert.True(t, IsNoMatch(err))

	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCropper_InProcessOperatorBypassesCache(t *testing.T) {
	t.Parallel()
	c := newTestCropper(t, WithCache(cachePath(t)))

	whole := OperatorFunc(func(_ context.Context, src string, _ engine.Range, _ []int) (engine.Range, error) {
		return engine.Range{Start: 0, End: len(src)}, nil
	})
	res, err := c.Crop(context.Background(), twoFuncs, "whole(.bar)", WithOperator("whole", whole))
	require.NoError(t, err)
	assert.Equal(t, twoFuncs, res.Code)

	n, err := c.CacheSize()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCropper_Defaults(t *testing.T) {
	t.Parallel()
	c := newTestCropper(t, WithDefaults(WithEngineName("go"), WithUndent(true)))
	const src = "package p\n\nfunc Hello() {\n\tprintln()\n}\n"

	res, err := c.Crop(context.Background(), src, ".Hello")
	require.NoError(t, err)
	assert.Equal(t, "func Hello() {\n\tprintln()\n}", res.Code)

	// Per-call options override the defaults.
	_, err = c.Crop(context.Background(), twoFuncs, ".bar", WithEngineName("javascript"))
	require.NoError(t, err)
}

func TestCropper_CropFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	goFile := filepath.Join(dir, "hello.go")
	require.NoError(t, os.WriteFile(goFile, []byte("package p\n\n// Hello greets.\nfunc Hello() {}\n"), 0o644))

	c := newTestCropper(t)
	res, err := c.CropFile(context.Background(), goFile, ".Hello")
	require.NoError(t, err)
	assert.Equal(t, "func Hello() {}", res.Code)
	assert.Equal(t, 4, res.StartLine)

	res, err = c.CropFile(context.Background(), goFile, "comments(.Hello)")
	require.NoError(t, err)
	assert.Equal(t, "// Hello greets.\nfunc Hello() {}", res.Code)

	_, err = c.CropFile(context.Background(), filepath.Join(dir, "missing.go"), ".Hello")
	require.Error(t, err)
}

func TestCropper_Concurrent(t *testing.T) {
	t.Parallel()
	c := newTestCropper(t, WithCache(cachePath(t)), WithParseCacheSize(2))
	const src = "function a() {}\nfunction b() {}\nfunction c() {}\n"

	var wg sync.WaitGroup
	for i := range 24 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := []string{".a", ".b", ".c"}[i%3]
			res, err := c.Crop(context.Background(), src, q)
			if assert.NoError(t, err) {
				assert.Equal(t, "function "+q[1:]+"() {}", res.Code)
			}
		}()
	}
	wg.Wait()
}
