package apitest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

// FixtureSource resolves request and expected-response fixtures.
type FixtureSource interface {
	LoadRequest(version, operation string) (*RequestDefinition, error)
	LoadExpectedResponse(version, operation, variant string) (*ExpectedResponse, error)
}

// Runner replays fixtures through a transport and compares the outcome.
// It holds no per-run state and may be shared by parallel tests.
type Runner struct {
	fixtures   FixtureSource
	transport  Transport
	comparator *Comparator
	schema     *SchemaValidator
	logger     pkglog.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithComparator replaces the default comparator.
func WithComparator(c *Comparator) Option {
	return func(r *Runner) {
		if c != nil {
			r.comparator = c
		}
	}
}

// WithSchemaValidator additionally validates every actual response against
// the documented operation.
func WithSchemaValidator(v *SchemaValidator) Option {
	return func(r *Runner) {
		r.schema = v
	}
}

// WithLogger overrides the logger. Defaults to a no-op logger.
func WithLogger(logger pkglog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner wires a runner from its fixture source and transport.
func NewRunner(fixtures FixtureSource, transport Transport, opts ...Option) *Runner {
	r := &Runner{
		fixtures:   fixtures,
		transport:  transport,
		comparator: NewComparator(),
		logger:     pkglog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run performs one exchange for (version, operation) and compares it against
// the given variant. A non-empty report is not an error; see Verify.
//
// When override is non-nil its method, URL, body and headers take precedence
// over the stored request; the stored request may then be absent.
func (r *Runner) Run(ctx context.Context, version, operation, variant string, override *http.Request) (Report, error) {
	if r.fixtures == nil || r.transport == nil {
		return Report{}, errors.New("runner requires a fixture source and a transport")
	}

	def, err := r.resolveRequest(version, operation, override)
	if err != nil {
		return Report{}, err
	}

	expected, err := r.fixtures.LoadExpectedResponse(version, operation, variant)
	if err != nil {
		return Report{}, err
	}

	sendCtx := WithFixtureKey(ctx, FixtureKey{Version: version, Operation: operation, Variant: variant})
	actual, err := r.transport.Send(sendCtx, def.Clone())
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		r.logger.Warnw("contract exchange failed", "version", version, "operation", operation, "variant", variant, "error", err)
		return Report{}, err
	}

	report := r.comparator.Compare(actual, expected)
	if r.schema != nil {
		report.merge(r.schema.Validate(ctx, def, actual))
	}

	r.logger.Debugw("contract exchange compared",
		"version", version,
		"operation", operation,
		"variant", variant,
		"method", def.Method,
		"uri", def.URI,
		"status", actual.Status,
		"mismatches", len(report.Entries),
	)
	return report, nil
}

// Verify is Run with a non-empty report turned into a *MismatchError.
func (r *Runner) Verify(ctx context.Context, version, operation, variant string, override *http.Request) error {
	report, err := r.Run(ctx, version, operation, variant, override)
	if err != nil {
		return err
	}
	if report.OK() {
		return nil
	}
	return &MismatchError{Version: version, Operation: operation, Variant: variant, Report: report}
}

func (r *Runner) resolveRequest(version, operation string, override *http.Request) (*RequestDefinition, error) {
	stored, err := r.fixtures.LoadRequest(version, operation)
	if err != nil {
		if override == nil || !errors.Is(err, ErrFixtureNotFound) {
			return nil, err
		}
		stored = nil
	}
	if override == nil {
		return stored, nil
	}
	return applyOverride(stored, override)
}

func applyOverride(stored *RequestDefinition, override *http.Request) (*RequestDefinition, error) {
	hasBody := override.Body != nil && override.Body != http.NoBody
	ov, err := RequestFromHTTP(override)
	if err != nil {
		return nil, fmt.Errorf("capture override: %w", err)
	}
	if stored == nil {
		return ov, nil
	}

	merged := stored.Clone()
	if override.Method != "" {
		merged.Method = ov.Method
	}
	if override.URL != nil {
		merged.URI = ov.URI
	}
	if hasBody {
		merged.Body = ov.Body
	}
	if merged.Header == nil {
		merged.Header = http.Header{}
	}
	for name, values := range ov.Header {
		merged.Header[name] = append([]string(nil), values...)
	}
	return merged, nil
}
