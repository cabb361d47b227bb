// Package config loads, validates, and normalises docs host configuration.
//
// It supports layered YAML files with environment variable overrides. The
// YAML schema carries the complete Swagger UI and ReDoc option objects so a
// deployment can be tuned without code changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theroutercompany/apidocs/pkg/docs/redoc"
	"github.com/theroutercompany/apidocs/pkg/docs/swaggerui"
)

const (
	defaultPort             = 8080
	defaultShutdownTimeout  = 15 * time.Second
	defaultReadinessTimeout = 2 * time.Second
	defaultRateLimitWindow  = 60 * time.Second
	defaultRateLimitMax     = 120
	defaultMaxBodyBytes     = 1 << 20
	defaultMetricsEnabled   = true
	defaultMergeConfig      = "openapi-merge.config.json"
	defaultDistDir          = "dist"
	defaultConfigEnvVar     = "APIDOCS_CONFIG"
	envPort                 = "PORT"
	envShutdownTimeout      = "SHUTDOWN_TIMEOUT_MS"
	envReadinessTimeout     = "READINESS_TIMEOUT_MS"
	envGitSHA               = "GIT_SHA"
	envCorsAllowedOrigins   = "CORS_ALLOWED_ORIGINS"
	envRateLimitWindow      = "RATE_LIMIT_WINDOW_MS"
	envRateLimitMax         = "RATE_LIMIT_MAX"
	envMetricsEnabled       = "METRICS_ENABLED"
	envMergeConfig          = "OPENAPI_MERGE_CONFIG_PATH"
	envSwaggerUIPrefix      = "SWAGGERUI_ROUTE_PREFIX"
	envReDocPrefix          = "REDOC_ROUTE_PREFIX"
	envDocumentTitle        = "DOCUMENT_TITLE"
)

// Paths served by the host itself; UI prefixes must not shadow them.
var reservedPrefixes = []string{"health", "readyz", "metrics"}

// Config captures runtime configuration for the docs host.
type Config struct {
	Version   string          `yaml:"version"`
	HTTP      HTTPConfig      `yaml:"http"`
	Readiness ReadinessConfig `yaml:"readiness"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Documents DocumentsConfig `yaml:"documents"`
	SwaggerUI SwaggerUIConfig `yaml:"swaggerUI"`
	ReDoc     ReDocConfig     `yaml:"redoc"`
}

// HTTPConfig configures listener behaviour.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes"`
}

// ReadinessConfig bounds how long /readyz waits for document builds.
type ReadinessConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// CORSConfig captures allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// RateLimitConfig captures per-client throttling.
type RateLimitConfig struct {
	Window Duration `yaml:"window"`
	Max    int      `yaml:"max"`
}

// MetricsConfig toggles metrics exposure.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DocumentsConfig lists the OpenAPI document versions to serve. Versions
// listed here take precedence over the merge config file.
type DocumentsConfig struct {
	MergeConfig string           `yaml:"mergeConfig"`
	DistDir     string           `yaml:"distDir"`
	Versions    []DocumentConfig `yaml:"versions"`
}

// DocumentConfig names the fragment files merged into one version.
type DocumentConfig struct {
	Version string   `yaml:"version"`
	Name    string   `yaml:"name"`
	Inputs  []string `yaml:"inputs"`
}

// SwaggerUIConfig wraps the Swagger UI options with an on/off switch.
type SwaggerUIConfig struct {
	Enabled           bool `yaml:"enabled"`
	swaggerui.Options `yaml:",inline"`
}

// ReDocConfig wraps the ReDoc options with an on/off switch.
type ReDocConfig struct {
	Enabled       bool `yaml:"enabled"`
	redoc.Options `yaml:",inline"`
}

// Duration is a YAML-friendly wrapper over time.Duration supporting numeric millisecond inputs.
type Duration time.Duration

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.AsDuration().String(), nil
}

// UnmarshalYAML decodes Go duration strings or millisecond integers.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}

	txt := strings.TrimSpace(value.Value)
	if txt == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.Atoi(txt); err == nil {
		if ms < 0 {
			return fmt.Errorf("duration must be non-negative, got %d", ms)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(txt)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", txt, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be non-negative, got %s", parsed)
	}
	*d = Duration(parsed)
	return nil
}

// DurationFrom constructs a Duration from a time.Duration.
func DurationFrom(d time.Duration) Duration {
	return Duration(d)
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Version: os.Getenv(envGitSHA),
		HTTP: HTTPConfig{
			Port:            defaultPort,
			ShutdownTimeout: DurationFrom(defaultShutdownTimeout),
			MaxBodyBytes:    defaultMaxBodyBytes,
		},
		Readiness: ReadinessConfig{Timeout: DurationFrom(defaultReadinessTimeout)},
		RateLimit: RateLimitConfig{
			Window: DurationFrom(defaultRateLimitWindow),
			Max:    defaultRateLimitMax,
		},
		Metrics: MetricsConfig{Enabled: defaultMetricsEnabled},
		Documents: DocumentsConfig{
			MergeConfig: defaultMergeConfig,
			DistDir:     defaultDistDir,
		},
		SwaggerUI: SwaggerUIConfig{Enabled: true, Options: swaggerui.DefaultOptions()},
		ReDoc:     ReDocConfig{Enabled: true, Options: redoc.DefaultOptions()},
	}
}

// Option customises the load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	paths     []string
	lookupEnv func(string) (string, bool)
}

// WithPath adds a YAML config path to attempt loading.
func WithPath(path string) Option {
	return func(o *loaderOptions) {
		if strings.TrimSpace(path) != "" {
			o.paths = append(o.paths, path)
		}
	}
}

// WithLookupEnv overrides the environment lookup function (useful for tests).
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *loaderOptions) {
		o.lookupEnv = fn
	}
}

// Load builds a Config from defaults, YAML files, and environment overrides (in that order).
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{lookupEnv: os.LookupEnv}
	if envPath := strings.TrimSpace(os.Getenv(defaultConfigEnvVar)); envPath != "" {
		options.paths = append(options.paths, envPath)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	cfg := Default()

	for _, path := range options.paths {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, options.lookupEnv); err != nil {
		return cfg, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		val, ok := lookup(key)
		val = strings.TrimSpace(val)
		return val, ok && val != ""
	}

	var errs []error

	if val, ok := get(envPort); ok {
		port, err := strconv.Atoi(val)
		if err != nil || port <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s value: %s", envPort, val))
		} else {
			cfg.HTTP.Port = port
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{envShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{envReadinessTimeout, &cfg.Readiness.Timeout},
		{envRateLimitWindow, &cfg.RateLimit.Window},
	}
	for _, d := range durations {
		val, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := parsePositiveDurationMillis(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", d.key, err))
			continue
		}
		*d.dst = DurationFrom(parsed)
	}

	if val, ok := get(envGitSHA); ok {
		cfg.Version = val
	}
	if val, ok := get(envCorsAllowedOrigins); ok {
		cfg.CORS.AllowedOrigins = splitAndTrim(val)
	}
	if val, ok := get(envRateLimitMax); ok {
		max, err := strconv.Atoi(val)
		if err != nil || max <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s: %s", envRateLimitMax, val))
		} else {
			cfg.RateLimit.Max = max
		}
	}
	if val, ok := get(envMetricsEnabled); ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", envMetricsEnabled, err))
		} else {
			cfg.Metrics.Enabled = enabled
		}
	}
	if val, ok := get(envMergeConfig); ok {
		cfg.Documents.MergeConfig = val
	}
	if val, ok := get(envSwaggerUIPrefix); ok {
		cfg.SwaggerUI.RoutePrefix = val
	}
	if val, ok := get(envReDocPrefix); ok {
		cfg.ReDoc.RoutePrefix = val
	}
	if val, ok := get(envDocumentTitle); ok {
		cfg.SwaggerUI.DocumentTitle = val
		cfg.ReDoc.DocumentTitle = val
	}

	return errors.Join(errs...)
}

// normalize fills in defaults that may be missing after YAML/env overrides.
func (cfg *Config) normalize() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultPort
	}
	if cfg.HTTP.ShutdownTimeout.AsDuration() <= 0 {
		cfg.HTTP.ShutdownTimeout = DurationFrom(defaultShutdownTimeout)
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Readiness.Timeout.AsDuration() <= 0 {
		cfg.Readiness.Timeout = DurationFrom(defaultReadinessTimeout)
	}
	if cfg.RateLimit.Window.AsDuration() <= 0 {
		cfg.RateLimit.Window = DurationFrom(defaultRateLimitWindow)
	}
	if cfg.RateLimit.Max <= 0 {
		cfg.RateLimit.Max = defaultRateLimitMax
	}
	if strings.TrimSpace(cfg.Documents.DistDir) == "" {
		cfg.Documents.DistDir = defaultDistDir
	}
	for i := range cfg.Documents.Versions {
		doc := &cfg.Documents.Versions[i]
		doc.Version = strings.TrimSpace(doc.Version)
		if strings.TrimSpace(doc.Name) == "" {
			doc.Name = doc.Version
		}
	}

	cfg.SwaggerUI.RoutePrefix = strings.Trim(strings.TrimSpace(cfg.SwaggerUI.RoutePrefix), "/")
	cfg.ReDoc.RoutePrefix = strings.Trim(strings.TrimSpace(cfg.ReDoc.RoutePrefix), "/")
}

// Validate performs semantic validation on the configuration.
func (cfg Config) Validate() error {
	var errs []error

	if cfg.HTTP.Port <= 0 {
		errs = append(errs, errors.New("http.port must be positive"))
	}
	if cfg.HTTP.ShutdownTimeout.AsDuration() <= 0 {
		errs = append(errs, errors.New("http.shutdownTimeout must be positive"))
	}
	if cfg.Readiness.Timeout.AsDuration() <= 0 {
		errs = append(errs, errors.New("readiness.timeout must be positive"))
	}
	if cfg.RateLimit.Max <= 0 {
		errs = append(errs, errors.New("rateLimit.max must be positive"))
	}
	if cfg.RateLimit.Window.AsDuration() <= 0 {
		errs = append(errs, errors.New("rateLimit.window must be positive"))
	}

	if len(cfg.Documents.Versions) == 0 && strings.TrimSpace(cfg.Documents.MergeConfig) == "" {
		errs = append(errs, errors.New("documents require versions or a mergeConfig"))
	}
	seen := make(map[string]struct{}, len(cfg.Documents.Versions))
	for _, doc := range cfg.Documents.Versions {
		switch {
		case doc.Version == "":
			errs = append(errs, errors.New("document version must not be empty"))
			continue
		case strings.ContainsAny(doc.Version, `/\`) || doc.Version == "." || doc.Version == "..":
			errs = append(errs, fmt.Errorf("document version %q is not a single path segment", doc.Version))
		}
		if _, dup := seen[doc.Version]; dup {
			errs = append(errs, fmt.Errorf("duplicate document version: %s", doc.Version))
		}
		seen[doc.Version] = struct{}{}
		if len(doc.Inputs) == 0 {
			errs = append(errs, fmt.Errorf("document %s requires at least one input", doc.Version))
		}
	}

	if cfg.SwaggerUI.Enabled {
		errs = append(errs, validatePrefix("swaggerUI.routePrefix", cfg.SwaggerUI.RoutePrefix))
	}
	if cfg.ReDoc.Enabled {
		errs = append(errs, validatePrefix("redoc.routePrefix", cfg.ReDoc.RoutePrefix))
	}
	if cfg.SwaggerUI.Enabled && cfg.ReDoc.Enabled && cfg.SwaggerUI.RoutePrefix == cfg.ReDoc.RoutePrefix {
		errs = append(errs, fmt.Errorf("swaggerUI and redoc share route prefix %q", cfg.ReDoc.RoutePrefix))
	}

	return errors.Join(errs...)
}

func validatePrefix(field, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	first := strings.SplitN(prefix, "/", 2)[0]
	for _, reserved := range reservedPrefixes {
		if first == reserved {
			return fmt.Errorf("%s %q collides with /%s", field, prefix, reserved)
		}
	}
	return nil
}

func parsePositiveDurationMillis(value string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if ms <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitAndTrim(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
