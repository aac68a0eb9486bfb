package cq

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/resolve"
	"github.com/jward/cq/internal/script"
	"github.com/jward/cq/internal/store"
)

// DefaultParseCacheSize is the number of parsed sources a Cropper keeps in
// memory unless WithParseCacheSize says otherwise.
const DefaultParseCacheSize = 64

// operatorsHashKey is the metadata key recording which operator scripts the
// cached crops were computed with.
const operatorsHashKey = "operators_hash"

// Cropper is a long-lived cropping service. It keeps recently parsed sources
// in memory, optionally persists crop results in SQLite and resolves
// user-scripted operators. A Cropper is safe for concurrent use.
type Cropper struct {
	store    *store.Store // nil without WithCache
	ops      *script.Runtime
	asts     *lru.Cache[string, *astEntry]
	defaults []Option
	logger   *slog.Logger

	cachePath      string
	operatorsDir   string
	operatorsFS    fs.FS
	parseCacheSize int
}

// astEntry is a parsed source shared between calls. Tree-sitter node
// wrappers are not safe for concurrent traversal, so resolutions against
// the same tree hold mu.
type astEntry struct {
	mu  sync.Mutex
	ast engine.AST
}

// CropperOption configures a Cropper.
type CropperOption func(*Cropper)

// WithCache persists crop results in a SQLite database at path.
func WithCache(path string) CropperOption {
	return func(c *Cropper) {
		c.cachePath = path
	}
}

// WithOperatorsDir loads scripted operators from the *.risor files in dir.
func WithOperatorsDir(dir string) CropperOption {
	return func(c *Cropper) {
		c.operatorsDir = dir
	}
}

// WithOperatorsFS loads scripted operators from fsys instead of a directory
// on disk. This enables embedding operators via go:embed.
func WithOperatorsFS(fsys fs.FS) CropperOption {
	return func(c *Cropper) {
		c.operatorsFS = fsys
	}
}

// WithParseCacheSize sets how many parsed sources are kept in memory.
func WithParseCacheSize(n int) CropperOption {
	return func(c *Cropper) {
		c.parseCacheSize = n
	}
}

// WithDefaults sets Options applied before the per-call ones on every crop.
func WithDefaults(opts ...Option) CropperOption {
	return func(c *Cropper) {
		c.defaults = append(c.defaults, opts...)
	}
}

// NewCropper creates a Cropper. With WithCache, crops cached under a
// different set of operator scripts are discarded.
func NewCropper(opts ...CropperOption) (*Cropper, error) {
	c := &Cropper{parseCacheSize: DefaultParseCacheSize}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = newConfig(c.defaults).logger

	asts, err := lru.New[string, *astEntry](max(c.parseCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("cq: parse cache: %w", err)
	}
	c.asts = asts

	if c.operatorsDir != "" || c.operatorsFS != nil {
		rtOpts := []script.Option{script.WithLogger(c.logger)}
		if c.operatorsFS != nil {
			rtOpts = append(rtOpts, script.WithFS(c.operatorsFS))
		}
		rt := script.New(c.operatorsDir, rtOpts...)
		if err := rt.Load(); err != nil {
			return nil, fmt.Errorf("cq: load operators: %w", err)
		}
		c.ops = rt
	}

	if c.cachePath != "" {
		s, err := store.NewStore(c.cachePath)
		if err != nil {
			return nil, fmt.Errorf("cq: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("cq: migrate: %w", err)
		}
		c.store = s
		if err := c.syncOperatorsHash(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close releases the crop cache and drops every parsed source.
func (c *Cropper) Close() error {
	c.asts.Purge()
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// operatorsHash identifies the loaded operator scripts.
func (c *Cropper) operatorsHash() string {
	if c.ops == nil {
		return script.New("").Hash()
	}
	return c.ops.Hash()
}

// OperatorsChanged reports whether the loaded operator scripts differ from
// the ones the crop cache was built with.
func (c *Cropper) OperatorsChanged() bool {
	if c.store == nil {
		return false
	}
	stored, err := c.store.GetMetadata(operatorsHashKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != c.operatorsHash()
}

// syncOperatorsHash clears the crop cache when the operator scripts changed
// and records the current hash.
func (c *Cropper) syncOperatorsHash() error {
	if !c.OperatorsChanged() {
		return nil
	}
	n, err := c.store.Clear()
	if err != nil {
		return fmt.Errorf("cq: clear cache: %w", err)
	}
	if n > 0 {
		c.logger.Info("operators changed, cleared crop cache", "crops", n)
	}
	if err := c.store.SetMetadata(operatorsHashKey, c.operatorsHash()); err != nil {
		return fmt.Errorf("cq: record operators hash: %w", err)
	}
	return nil
}

// Operators returns the names of every available operator, built-in and
// scripted, sorted.
func (c *Cropper) Operators() []string {
	names := resolve.Builtins()
	if c.ops != nil {
		names = append(names, c.ops.Names()...)
	}
	slices.Sort(names)
	return names
}

// CacheSize returns the number of cached crops. It is 0 without WithCache.
func (c *Cropper) CacheSize() (int, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.Count()
}

// ClearCache deletes every cached crop and returns how many were removed.
func (c *Cropper) ClearCache() (int64, error) {
	c.asts.Purge()
	if c.store == nil {
		return 0, nil
	}
	return c.store.Clear()
}

// CachedCrops returns the number of crops cached for src.
func (c *Cropper) CachedCrops(src string) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	crops, err := c.store.CropsBySource(store.HashSource(src))
	if err != nil {
		return 0, err
	}
	return len(crops), nil
}

// Forget deletes the crops cached for each of srcs and returns how many were
// removed.
func (c *Cropper) Forget(srcs ...string) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	hashes := make([]string, len(srcs))
	for i, src := range srcs {
		hashes[i] = store.HashSource(src)
	}
	return c.store.DeleteCropsBySource(hashes...)
}

// Crop is the package-level Crop with the Cropper's caches, operators and
// defaults.
func (c *Cropper) Crop(ctx context.Context, src, q string, opts ...Option) (*Result, error) {
	qs, err := query.Parse(q)
	if err != nil {
		return nil, fmt.Errorf("cq: parse query: %w", err)
	}
	return c.CropQueries(ctx, src, qs, opts...)
}

// CropQueries is the package-level CropQueries with the Cropper's caches,
// operators and defaults.
func (c *Cropper) CropQueries(ctx context.Context, src string, qs []*Query, opts ...Option) (*Result, error) {
	var cs store.CropStore
	if c.store != nil {
		cs = c.store
	}
	return c.crop(ctx, cs, src, qs, opts)
}

// CropFile reads path and crops it. The engine is chosen from the file
// extension unless an option picks one.
func (c *Cropper) CropFile(ctx context.Context, path, q string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cq: read %s: %w", path, err)
	}
	return c.Crop(ctx, string(data), q, fileOptions(path, opts)...)
}

// fileOptions puts the engine implied by path's extension ahead of opts so
// an explicit engine option still wins.
func fileOptions(path string, opts []Option) []Option {
	name, ok := engine.LanguageForFile(path)
	if !ok {
		return opts
	}
	return append([]Option{WithEngineName(name)}, opts...)
}

// crop resolves qs against src, reading and writing cached crops through
// cs when it is non-nil. Crops that use in-process operators or a custom
// engine bypass both caches since neither can be fingerprinted.
func (c *Cropper) crop(ctx context.Context, cs store.CropStore, src string, qs []*Query, opts []Option) (*Result, error) {
	cfg := newConfig(append(slices.Clone(c.defaults), opts...))
	eng, err := cfg.selectEngine()
	if err != nil {
		return nil, err
	}
	shared := isBuiltinEngine(eng)
	if len(cfg.operators) > 0 || !shared {
		cs = nil
	}
	if c.ops != nil {
		ops := c.ops.Operators()
		maps.Copy(ops, cfg.operators)
		cfg.operators = ops
	}

	parserKey, err := json.Marshal(cfg.parserOpts)
	if err != nil {
		return nil, fmt.Errorf("cq: parser options: %w", err)
	}
	srcHash := store.HashSource(src)
	queryKey, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("cq: query key: %w", err)
	}

	var key string
	if cs != nil {
		key = store.ComputeCropKey(store.KeyParts{
			Engine:        eng.Name(),
			SourceHash:    srcHash,
			Query:         string(queryKey),
			ParserOptions: string(parserKey),
			Undent:        cfg.undent,
			NodeIdx:       cfg.rc.NodeIdx,
			After:         cfg.rc.After,
			HasAfter:      cfg.rc.HasAfter,
		})
		cached, err := cs.CropByKey(key)
		if err != nil {
			return nil, fmt.Errorf("cq: read cache: %w", err)
		}
		if cached != nil {
			cfg.logger.Debug("crop cache hit", "key", key)
			return resultFromCrop(cached), nil
		}
	}

	entry, err := c.parse(ctx, eng, src, srcHash+"\x00"+string(parserKey), cfg.parserOpts, shared)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	res, err := cropAST(ctx, eng, entry.ast, src, qs, cfg)
	entry.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if cs != nil {
		err := cs.InsertCrop(&store.Crop{
			Key:        key,
			SourceHash: srcHash,
			Engine:     eng.Name(),
			Query:      query.List(qs),
			Code:       res.Code,
			Start:      res.Start,
			End:        res.End,
			StartLine:  res.StartLine,
			EndLine:    res.EndLine,
		})
		if err != nil {
			return nil, fmt.Errorf("cq: write cache: %w", err)
		}
	}
	return res, nil
}

// parse returns the cached AST for src, parsing it on a miss. Concurrent
// misses on the same source may both parse; the later one wins the slot.
// Without shared the AST is parsed fresh and not cached.
func (c *Cropper) parse(ctx context.Context, eng Engine, src, srcKey string, opts ParserOptions, shared bool) (*astEntry, error) {
	key := eng.Name() + "\x00" + srcKey
	if shared {
		if e, ok := c.asts.Get(key); ok {
			return e, nil
		}
	}
	ast, err := eng.Parse(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("cq: parse source: %w", err)
	}
	e := &astEntry{ast: ast}
	if shared {
		c.asts.Add(key, e)
	}
	return e, nil
}

// isBuiltinEngine reports whether eng is the registered engine for its name.
// Only those are identified by name in cache keys.
func isBuiltinEngine(eng Engine) bool {
	b, ok := engine.Lookup(eng.Name())
	return ok && Engine(b) == eng
}

// resultFromCrop rebuilds a Result from a cached crop. Cached results carry
// no AST nodes.
func resultFromCrop(cr *store.Crop) *Result {
	return &Result{
		Match: Match{
			Code:  cr.Code,
			Start: cr.Start,
			End:   cr.End,
		},
		StartLine: cr.StartLine,
		EndLine:   cr.EndLine,
	}
}
