// Package script runs user-defined range operators written in Risor.
//
// Each file NAME.risor in the operator directory defines the operator NAME.
// A script sees the source as `code`, the span of its inner query as `start`
// and `end`, and its numeric parameters as the list `args`. Its last
// expression must be a map holding the new integer `start` and `end`.
package script

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/resolve"
)

const ext = ".risor"

// Runtime loads operator scripts and evaluates them in a fresh Risor VM per
// call, so operators are safe for concurrent use.
type Runtime struct {
	dir     string
	fsys    fs.FS
	logger  *slog.Logger
	scripts map[string]string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS loads scripts from fsys instead of the directory passed to New.
// Risor import statements resolve within the same FS.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' `log` global.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Runtime reading operator scripts from dir.
func New(dir string, opts ...Option) *Runtime {
	r := &Runtime{
		dir:     dir,
		logger:  slog.New(slog.DiscardHandler),
		scripts: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads every *.risor file at the top level of the operator source.
// Scripts named after a built-in operator are skipped with a warning.
func (r *Runtime) Load() error {
	fsys := r.source()
	if fsys == nil {
		return nil
	}
	matches, err := fs.Glob(fsys, "*"+ext)
	if err != nil {
		return fmt.Errorf("script: listing operators: %w", err)
	}
	for _, m := range matches {
		name := strings.TrimSuffix(path.Base(m), ext)
		if resolve.IsBuiltin(name) {
			r.logger.Warn("operator script shadows a built-in, skipping", "name", name)
			continue
		}
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return fmt.Errorf("script: loading operator %s: %w", m, err)
		}
		r.scripts[name] = string(data)
		r.logger.Debug("loaded operator", "name", name)
	}
	return nil
}

func (r *Runtime) source() fs.FS {
	if r.fsys != nil {
		return r.fsys
	}
	if r.dir != "" {
		return os.DirFS(r.dir)
	}
	return nil
}

// Names returns the loaded operator names, sorted.
func (r *Runtime) Names() []string {
	names := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hash returns a SHA-256 over the loaded operator names and sources. It
// changes whenever an operator is added, removed or edited.
func (r *Runtime) Hash() string {
	h := sha256.New()
	for _, name := range r.Names() {
		fmt.Fprintf(h, "%s\n%d\n%s", name, len(r.scripts[name]), r.scripts[name])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Operators returns the loaded scripts as resolver operators.
func (r *Runtime) Operators() map[string]resolve.Operator {
	ops := make(map[string]resolve.Operator, len(r.scripts))
	for name, src := range r.scripts {
		ops[name] = &Operator{rt: r, name: name, source: src}
	}
	return ops
}

// Operator is a single scripted range operator.
type Operator struct {
	rt     *Runtime
	name   string
	source string
}

var _ resolve.Operator = (*Operator)(nil)

// Apply evaluates the script on span and returns the span it produces.
func (o *Operator) Apply(ctx context.Context, src string, span engine.Range, params []int) (engine.Range, error) {
	args := make([]object.Object, len(params))
	for i, p := range params {
		args[i] = object.NewInt(int64(p))
	}
	globals := map[string]any{
		"code":         object.NewString(src),
		"start":        object.NewInt(int64(span.Start)),
		"end":          object.NewInt(int64(span.End)),
		"args":         object.NewList(args),
		"next_newline": makeNextNewlineFn(src),
		"move_lines":   makeMoveLinesFn(src),
		"line_of":      makeLineOfFn(src),
		"log":          mustProxy(&logObject{logger: o.rt.logger, operator: o.name}),
	}

	result, err := o.rt.eval(ctx, o.source, globals)
	if err != nil {
		return engine.Range{}, fmt.Errorf("script: %s: %w", o.name, err)
	}
	rg, err := toRange(result)
	if err != nil {
		return engine.Range{}, fmt.Errorf("script: %s: %w", o.name, err)
	}
	return rg, nil
}

func (r *Runtime) eval(ctx context.Context, source string, globals map[string]any) (object.Object, error) {
	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	return risor.Eval(ctx, source, opts...)
}

// buildImporter lets operator scripts import helper modules that live next
// to them.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{ext},
		})
	}
	if r.dir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.dir,
			Extensions:  []string{ext},
		})
	}
	return nil
}

// toRange reads the {start, end} map an operator script evaluates to.
func toRange(obj object.Object) (engine.Range, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return engine.Range{}, fmt.Errorf("result must be a map with start and end, got %s", obj.Inspect())
	}
	vals := m.Value()
	start, err := intField(vals, "start")
	if err != nil {
		return engine.Range{}, err
	}
	end, err := intField(vals, "end")
	if err != nil {
		return engine.Range{}, err
	}
	return engine.Range{Start: start, End: end}, nil
}

func intField(m map[string]object.Object, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("result has no %q", key)
	}
	switch n := v.(type) {
	case *object.Int:
		return int(n.Value()), nil
	case *object.Float:
		return int(n.Value()), nil
	default:
		return 0, fmt.Errorf("result %q must be an integer, got %s", key, v.Type())
	}
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("script: proxy error: %v", err))
	}
	return p
}
