package cq

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// goldenHeader is the YAML comment section of a golden archive.
type goldenHeader struct {
	Engine    string `yaml:"engine"`
	Undent    bool   `yaml:"undent"`
	StartLine int    `yaml:"start_line"`
	EndLine   int    `yaml:"end_line"`
}

// goldenCase is one testdata/crop/*.txtar archive: a source, a query and the
// code it must crop to.
type goldenCase struct {
	header goldenHeader
	source string
	query  string
	want   string
}

func loadGolden(t *testing.T, path string) goldenCase {
	t.Helper()
	ar, err := txtar.ParseFile(path)
	require.NoError(t, err)

	var gc goldenCase
	require.NoError(t, yaml.Unmarshal(ar.Comment, &gc.header))

	files := make(map[string]string, len(ar.Files))
	for _, f := range ar.Files {
		files[f.Name] = string(f.Data)
	}
	for _, name := range []string{"source", "query", "want"} {
		_, ok := files[name]
		require.True(t, ok, "%s: missing %q section", path, name)
	}
	gc.source = files["source"]
	gc.query = strings.TrimSpace(files["query"])
	gc.want = strings.TrimSuffix(files["want"], "\n")
	return gc
}

// TestGolden crops every archive in testdata/crop both directly and
// through a caching Cropper.
func TestGolden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "crop", "*.txtar"))
	require.NoError(t, err)
	if len(paths) == 0 {
		t.Skip("no golden archives found")
	}

	c := newTestCropper(t, WithCache(cachePath(t)))

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".txtar")
		t.Run(name, func(t *testing.T) {
			gc := loadGolden(t, path)

			var opts []Option
			if gc.header.Engine != "" {
				opts = append(opts, WithEngineName(gc.header.Engine))
			}
			opts = append(opts, WithUndent(gc.header.Undent))

			res, err := Crop(context.Background(), gc.source, gc.query, opts...)
			require.NoError(t, err)
			assert.Equal(t, gc.want, res.Code)
			if gc.header.StartLine > 0 {
				assert.Equal(t, gc.header.StartLine, res.StartLine, "start line")
			}
			if gc.header.EndLine > 0 {
				assert.Equal(t, gc.header.EndLine, res.EndLine, "end line")
			}

			// Twice through the Cropper: a miss, then a cache hit.
			for range 2 {
				cached, err := c.Crop(context.Background(), gc.source, gc.query, opts...)
				require.NoError(t, err)
				assert.Equal(t, res.Code, cached.Code)
				assert.Equal(t, res.Start, cached.Start)
				assert.Equal(t, res.End, cached.End)
			}
		})
	}
}
