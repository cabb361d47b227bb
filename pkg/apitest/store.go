package apitest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	requestFile        = "request.http"
	responseFilePrefix = "response."
	responseFileSuffix = ".http"
	rulesFileSuffix    = ".rules.yaml"
)

// Store resolves fixtures laid out as
// {version}/{operation}/request.http and
// {version}/{operation}/response.{variant}.http.
// Reads are side-effect free; a Store is safe for concurrent use.
type Store struct {
	fsys fs.FS
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithFS reads fixtures from fsys instead of the OS filesystem.
func WithFS(fsys fs.FS) StoreOption {
	return func(s *Store) {
		if fsys != nil {
			s.fsys = fsys
		}
	}
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.fsys == nil {
		if dir == "" {
			dir = "."
		}
		s.fsys = os.DirFS(dir)
	}
	return s
}

// LoadRequest loads the request fixture for an operation.
func (s *Store) LoadRequest(version, operation string) (*RequestDefinition, error) {
	name, err := fixturePath(version, operation, requestFile)
	if err != nil {
		return nil, err
	}
	data, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return parseRequest(name, data)
}

// LoadExpectedResponse loads the expected response for a variant together
// with its optional rules sidecar.
func (s *Store) LoadExpectedResponse(version, operation, variant string) (*ExpectedResponse, error) {
	if err := validSegment(variant); err != nil {
		return nil, err
	}
	name, err := fixturePath(version, operation, responseFilePrefix+variant+responseFileSuffix)
	if err != nil {
		return nil, err
	}
	data, err := s.read(name)
	if err != nil {
		return nil, err
	}
	status, header, body, err := parseResponse(name, data)
	if err != nil {
		return nil, err
	}

	expected := &ExpectedResponse{
		Version:   version,
		Operation: operation,
		Variant:   variant,
		Status:    status,
		Header:    header,
		Body:      body,
	}

	rulesName, _ := fixturePath(version, operation, responseFilePrefix+variant+rulesFileSuffix)
	rules, err := s.loadRules(rulesName)
	if err != nil {
		return nil, err
	}
	if rules != nil {
		if err := rules.apply(expected); err != nil {
			return nil, malformed(rulesName, "%v", err)
		}
	}

	return expected, nil
}

// Variants lists the response variants stored for an operation.
func (s *Store) Variants(version, operation string) ([]string, error) {
	dir, err := fixturePath(version, operation, "")
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(s.fsys, strings.TrimSuffix(dir, "/"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFixtureNotFound, dir)
		}
		return nil, fmt.Errorf("list fixtures %s: %w", dir, err)
	}
	var variants []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, responseFilePrefix) || !strings.HasSuffix(name, responseFileSuffix) {
			continue
		}
		variants = append(variants, strings.TrimSuffix(strings.TrimPrefix(name, responseFilePrefix), responseFileSuffix))
	}
	return variants, nil
}

func (s *Store) read(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFixtureNotFound, name)
		}
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) loadRules(name string) (*fixtureRules, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fixture rules %s: %w", name, err)
	}
	var rules fixtureRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, malformed(name, "decode rules: %v", err)
	}
	return &rules, nil
}

// fixtureRules is the optional YAML sidecar of a response fixture:
//
//	exclude:
//	  - /traceId
//	headers:
//	  Location:
//	    policy: pattern
//	    pattern: ^/api/products/[0-9a-f-]+$
type fixtureRules struct {
	Exclude []string              `yaml:"exclude"`
	Headers map[string]headerRule `yaml:"headers"`
}

type headerRule struct {
	Policy  string `yaml:"policy"`
	Pattern string `yaml:"pattern"`
}

func (r *fixtureRules) apply(expected *ExpectedResponse) error {
	for _, ptr := range r.Exclude {
		if ptr != "" && !strings.HasPrefix(ptr, "/") {
			return fmt.Errorf("exclusion %q is not a JSON pointer", ptr)
		}
	}
	expected.Exclusions = append(expected.Exclusions, r.Exclude...)

	if len(r.Headers) == 0 {
		return nil
	}
	if expected.HeaderPolicies == nil {
		expected.HeaderPolicies = make(map[string]HeaderPolicy, len(r.Headers))
	}
	for name, rule := range r.Headers {
		policy, err := ParseHeaderPolicy(rule.Policy, rule.Pattern)
		if err != nil {
			return fmt.Errorf("header %s: %w", name, err)
		}
		if policy.Match == MatchExact && expected.Header.Values(name) == nil {
			return fmt.Errorf("header %s: exact policy needs a value in the response fixture", name)
		}
		expected.HeaderPolicies[canonicalHeader(name)] = policy
	}
	return nil
}

func fixturePath(version, operation, file string) (string, error) {
	if err := validSegment(version); err != nil {
		return "", err
	}
	if err := validSegment(operation); err != nil {
		return "", err
	}
	return path.Join(version, operation) + "/" + file, nil
}

func validSegment(seg string) error {
	if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
		return fmt.Errorf("%w: invalid fixture key segment %q", ErrFixtureMalformed, seg)
	}
	return nil
}
