// Package openapi builds, validates and caches versioned OpenAPI documents
// from one or more fragment files.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

const (
	defaultConfigFile = "openapi-merge.config.json"
	defaultDistDir    = "dist"
	distFileName      = "openapi.json"
	// DefaultVersion is used for merge configs that list inputs without a
	// documents section.
	DefaultVersion = "v1"
)

// ErrUnknownVersion is returned for a document version with no inputs.
var ErrUnknownVersion = errors.New("unknown document version")

// Build outcomes reported to a BuildObserver.
const (
	OutcomeCached = "cached"
	OutcomeDist   = "dist"
	OutcomeBuilt  = "built"
	OutcomeFailed = "failed"
)

// DocumentProvider exposes OpenAPI documents by version.
type DocumentProvider interface {
	Document(ctx context.Context, version string) ([]byte, error)
	Versions() []string
}

// BuildObserver is notified each time a document is requested.
type BuildObserver func(version, outcome string)

// Service merges OpenAPI fragments per document version and caches the
// result keyed by the modification time of the persisted dist file.
type Service struct {
	configPath string
	distDir    string
	sources    map[string][]string
	logger     pkglog.Logger
	observe    BuildObserver

	loadOnce sync.Once
	loadErr  error

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	raw     []byte
	modTime time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithConfigPath sets the JSON merge config listing fragment inputs.
func WithConfigPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.configPath = path
		}
	}
}

// WithDistDir overrides the directory merged documents are persisted under.
// Each version is written to {dir}/{version}/openapi.json.
func WithDistDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.distDir = dir
		}
	}
}

// WithDocument registers fragment files for a version. Documents registered
// this way take precedence over the merge config.
func WithDocument(version string, inputs ...string) Option {
	return func(s *Service) {
		if version == "" || len(inputs) == 0 {
			return
		}
		if s.sources == nil {
			s.sources = make(map[string][]string)
		}
		s.sources[version] = append([]string(nil), inputs...)
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger pkglog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuildObserver installs a hook used for build metrics.
func WithBuildObserver(fn BuildObserver) Option {
	return func(s *Service) {
		s.observe = fn
	}
}

// NewService constructs a Service with optional overrides.
func NewService(opts ...Option) *Service {
	s := &Service{
		distDir: filepath.FromSlash(defaultDistDir),
		cache:   make(map[string]cacheEntry),
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.configPath == "" && len(s.sources) == 0 {
		s.configPath = resolveConfigPath()
	}
	if s.logger == nil {
		s.logger = pkglog.Named("openapi")
	}
	if s.observe == nil {
		s.observe = func(string, string) {}
	}
	return s
}

// Versions lists the known document versions in lexical order. Versions from
// the merge config are only included once it has been read successfully.
func (s *Service) Versions() []string {
	_ = s.loadSources()
	versions := make([]string, 0, len(s.sources))
	for v := range s.sources {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// DistPath returns where the document for version is persisted.
func (s *Service) DistPath(version string) string {
	return filepath.Join(s.distDir, version, distFileName)
}

// Document returns the merged OpenAPI document for version in JSON form.
// A dist file already on disk is served as-is; otherwise the fragments are
// merged, validated and persisted.
func (s *Service) Document(ctx context.Context, version string) ([]byte, error) {
	if err := s.loadSources(); err != nil {
		s.observe(version, OutcomeFailed)
		return nil, err
	}
	inputs, ok := s.sources[version]
	if !ok {
		s.observe(version, OutcomeFailed)
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	distPath := s.DistPath(version)
	if data, ok := s.cachedIfCurrent(version, distPath); ok {
		s.observe(version, OutcomeCached)
		return data, nil
	}

	if data, modTime, err := readDist(distPath); err == nil {
		s.cache[version] = cacheEntry{raw: data, modTime: modTime}
		s.observe(version, OutcomeDist)
		return clone(data), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		s.observe(version, OutcomeFailed)
		return nil, fmt.Errorf("read dist %s: %w", distPath, err)
	}

	raw, err := s.build(ctx, inputs)
	if err != nil {
		s.observe(version, OutcomeFailed)
		return nil, fmt.Errorf("build %s: %w", version, err)
	}

	modTime := time.Time{}
	if err := persist(distPath, raw); err != nil {
		s.logger.Warnw("failed to persist merged openapi document", "error", err, "path", distPath, "version", version)
	} else {
		modTime = fileModTime(distPath)
	}
	s.cache[version] = cacheEntry{raw: clone(raw), modTime: modTime}
	s.logger.Infow("openapi document built", "version", version, "fragments", len(inputs), "bytes", len(raw))
	s.observe(version, OutcomeBuilt)

	return clone(raw), nil
}

// Rebuild discards the cached and persisted document for version and builds
// it again from its fragments.
func (s *Service) Rebuild(ctx context.Context, version string) ([]byte, error) {
	s.mu.Lock()
	delete(s.cache, version)
	err := os.Remove(s.DistPath(version))
	s.mu.Unlock()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove dist: %w", err)
	}
	return s.Document(ctx, version)
}

func (s *Service) cachedIfCurrent(version, distPath string) ([]byte, bool) {
	entry, ok := s.cache[version]
	if !ok {
		return nil, false
	}
	info, err := os.Stat(distPath)
	if err != nil {
		// Persisting failed earlier; the in-memory build is all there is.
		if entry.modTime.IsZero() {
			return clone(entry.raw), true
		}
		return nil, false
	}
	if info.ModTime().Equal(entry.modTime) {
		return clone(entry.raw), true
	}
	return nil, false
}

func (s *Service) build(ctx context.Context, inputs []string) ([]byte, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	fragments := make([]*openapi3.T, 0, len(inputs))
	for _, path := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := loader.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load openapi fragment %s: %w", path, err)
		}
		fragments = append(fragments, doc)
	}

	merged, err := merge(fragments)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate merged document: %w", err)
	}

	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

func (s *Service) loadSources() error {
	s.loadOnce.Do(func() {
		if s.configPath == "" {
			return
		}
		cfg, err := loadConfig(s.configPath)
		if err != nil {
			s.loadErr = err
			return
		}
		if s.sources == nil {
			s.sources = make(map[string][]string)
		}
		for version, inputs := range cfg {
			if _, ok := s.sources[version]; !ok {
				s.sources[version] = inputs
			}
		}
	})
	return s.loadErr
}

// mergeConfig is the on-disk merge config. Either form is accepted:
//
//	{"inputs": [{"inputFile": "a.yaml"}]}
//	{"documents": {"v1": {"inputs": [{"inputFile": "a.yaml"}]}}}
type mergeConfig struct {
	Inputs    []mergeInput            `json:"inputs"`
	Documents map[string]mergeVersion `json:"documents"`
}

type mergeVersion struct {
	Inputs []mergeInput `json:"inputs"`
}

type mergeInput struct {
	InputFile string `json:"inputFile"`
}

func loadConfig(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg mergeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	baseDir := filepath.Dir(path)
	resolve := func(inputs []mergeInput) []string {
		out := make([]string, 0, len(inputs))
		for _, in := range inputs {
			p := in.InputFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			out = append(out, p)
		}
		return out
	}

	versions := make(map[string][]string, len(cfg.Documents)+1)
	for version, doc := range cfg.Documents {
		if len(doc.Inputs) == 0 {
			return nil, fmt.Errorf("openapi merge configuration for %s has no inputs", version)
		}
		versions[version] = resolve(doc.Inputs)
	}
	if len(cfg.Inputs) > 0 {
		if _, ok := versions[DefaultVersion]; !ok {
			versions[DefaultVersion] = resolve(cfg.Inputs)
		}
	}
	if len(versions) == 0 {
		return nil, errors.New("openapi merge configuration has no inputs")
	}
	return versions, nil
}

func readDist(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}

func persist(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func resolveConfigPath() string {
	if path := os.Getenv("OPENAPI_MERGE_CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.FromSlash(defaultConfigFile)
}

func fileModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
