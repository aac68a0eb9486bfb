package cq

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// benchSource is a realistic JavaScript module with nested suites, classes
// and comments, large enough for the searches to matter.
var benchSource = func() string {
	var b strings.Builder
	for i := range 50 {
		fmt.Fprintf(&b, "// helper%d does a thing.\n", i)
		fmt.Fprintf(&b, "function helper%d(x) {\n  return x + %d;\n}\n\n", i, i)
		fmt.Fprintf(&b, "class Widget%d {\n  render() {\n    return helper%d(1);\n  }\n}\n\n", i, i)
		fmt.Fprintf(&b, "describe('widget %d', () => {\n  it('renders', () => {\n    expect(new Widget%d().render()).toBe(%d);\n  });\n});\n\n", i, i, i+1)
	}
	return b.String()
}()

func newBenchCropper(b *testing.B, opts ...CropperOption) *Cropper {
	b.Helper()
	c, err := NewCropper(opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

func BenchmarkCrop(b *testing.B) {
	ctx := context.Background()
	for b.Loop() {
		if _, err := Crop(ctx, benchSource, "comments(.helper42)"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCropper_ParseCached(b *testing.B) {
	ctx := context.Background()
	c := newBenchCropper(b)
	for b.Loop() {
		if _, err := c.Crop(ctx, benchSource, "'widget 42' 'renders'"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCropper_CropCached(b *testing.B) {
	ctx := context.Background()
	c := newBenchCropper(b, WithCache(filepath.Join(b.TempDir(), "bench.db")))
	for b.Loop() {
		if _, err := c.Crop(ctx, benchSource, ".Widget42 .render"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCropFiles(b *testing.B) {
	ctx := context.Background()
	c := newBenchCropper(b)
	reqs := make([]Request, 50)
	for i := range reqs {
		reqs[i] = Request{Source: benchSource, Query: fmt.Sprintf(".helper%d", i)}
	}
	for b.Loop() {
		if _, err := c.CropFiles(ctx, reqs); err != nil {
			b.Fatal(err)
		}
	}
}
