package cq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/resolve"
	"github.com/jward/cq/internal/textpos"
)

// config holds the per-call settings built from Options.
type config struct {
	engine     Engine
	engineName string
	parserOpts ParserOptions
	undent     bool
	rc         resolve.Context
	logger     *slog.Logger
	operators  map[string]Operator
}

// Option configures a single crop.
type Option func(*config)

// WithEngine resolves with eng. It takes precedence over WithEngineName.
func WithEngine(eng Engine) Option {
	return func(c *config) {
		c.engine = eng
	}
}

// WithEngineName resolves with the built-in engine registered as name.
func WithEngineName(name string) Option {
	return func(c *config) {
		c.engineName = name
	}
}

// WithParserOptions forwards opts to the engine's parser. The tree-sitter
// engines understand {"strict": true}.
func WithParserOptions(opts ParserOptions) Option {
	return func(c *config) {
		c.parserOpts = opts
	}
}

// WithUndent strips the common indentation from the cropped code.
func WithUndent(undent bool) Option {
	return func(c *config) {
		c.undent = undent
	}
}

// WithAfter only considers nodes starting at or after offset.
func WithAfter(offset int) Option {
	return func(c *config) {
		c.rc = c.rc.WithAfter(offset)
	}
}

// WithNodeIndex picks the idx-th candidate of the innermost search, the
// one with no children left to resolve.
func WithNodeIndex(idx int) Option {
	return func(c *config) {
		c.rc = c.rc.WithNodeIdx(idx)
	}
}

// WithLogger traces resolution at Debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOperator registers an in-process range operator under name. Built-in
// operator names cannot be overridden.
func WithOperator(name string, op Operator) Option {
	return func(c *config) {
		if c.operators == nil {
			c.operators = make(map[string]Operator)
		}
		c.operators[name] = op
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// selectEngine picks the explicit engine, else the named one, else the
// default.
func (c *config) selectEngine() (Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	if c.engineName == "" {
		return engine.Default(), nil
	}
	eng, ok := engine.Lookup(c.engineName)
	if !ok {
		return nil, fmt.Errorf("cq: %q: %w", c.engineName, ErrUnknownEngine)
	}
	return eng, nil
}

// Crop resolves the textual query q against src and returns the cropped
// code with its byte and line span.
func Crop(ctx context.Context, src, q string, opts ...Option) (*Result, error) {
	qs, err := query.Parse(q)
	if err != nil {
		return nil, fmt.Errorf("cq: parse query: %w", err)
	}
	return CropQueries(ctx, src, qs, opts...)
}

// CropQueries resolves already-built query trees against src. Several
// queries are aggregated into a single Result.
func CropQueries(ctx context.Context, src string, qs []*Query, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	eng, err := cfg.selectEngine()
	if err != nil {
		return nil, err
	}
	ast, err := eng.Parse(ctx, src, cfg.parserOpts)
	if err != nil {
		return nil, fmt.Errorf("cq: parse source: %w", err)
	}
	return cropAST(ctx, eng, ast, src, qs, cfg)
}

func cropAST(ctx context.Context, eng Engine, ast engine.AST, src string, qs []*Query, cfg *config) (*Result, error) {
	r := resolve.New(eng, ast, src,
		resolve.WithLogger(cfg.logger),
		resolve.WithOperators(cfg.operators),
	)
	res, err := r.ResolveList(ctx, r.Root(), qs, cfg.rc)
	if err != nil {
		return nil, fmt.Errorf("cq: %w", err)
	}
	if cfg.undent {
		res.Code = textpos.Undent(res.Code)
	}
	return &res, nil
}
