package apitest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultSuiteConcurrency = 4

// SuiteConfig describes a batch of contract cases replayed against one
// server.
type SuiteConfig struct {
	BaseURL     string      `yaml:"baseUrl"`
	Fixtures    string      `yaml:"fixtures"`
	Version     string      `yaml:"version"`
	Concurrency int         `yaml:"concurrency"`
	Timeout     string      `yaml:"timeout"`
	Cases       []SuiteCase `yaml:"cases"`
}

// SuiteCase names one (operation, variant) pair.
type SuiteCase struct {
	Operation string `yaml:"operation"`
	Variant   string `yaml:"variant"`
}

func (c SuiteCase) String() string {
	return c.Operation + "/" + c.Variant
}

// LoadSuiteConfig reads a suite definition from a YAML file.
func LoadSuiteConfig(path string) (SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SuiteConfig{}, fmt.Errorf("read suite config: %w", err)
	}

	var cfg SuiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SuiteConfig{}, fmt.Errorf("decode suite config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return SuiteConfig{}, err
	}
	return cfg, nil
}

func (cfg *SuiteConfig) normalize() error {
	var errs []error
	if strings.TrimSpace(cfg.Version) == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if strings.TrimSpace(cfg.Fixtures) == "" {
		cfg.Fixtures = "testdata/fixtures"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSuiteConcurrency
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		}
	}
	for i, c := range cfg.Cases {
		if c.Operation == "" || c.Variant == "" {
			errs = append(errs, fmt.Errorf("case %d requires operation and variant", i))
		}
	}
	return errors.Join(errs...)
}

// RequestTimeout returns the configured per-request timeout, zero when unset.
func (cfg SuiteConfig) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(cfg.Timeout)
	return d
}

// CaseResult is the outcome of one suite case.
type CaseResult struct {
	Case     SuiteCase
	Report   Report
	Duration time.Duration
	Err      error
}

// Passed reports whether the case ran and matched.
func (r CaseResult) Passed() bool {
	return r.Err == nil && r.Report.OK()
}

// Suite replays cases with bounded concurrency. Every case owns its own
// request, response and report.
type Suite struct {
	Runner      *Runner
	Version     string
	Concurrency int
}

// Run executes cases and returns results in input order.
func (s *Suite) Run(ctx context.Context, cases []SuiteCase) []CaseResult {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSuiteConcurrency
	}

	results := make([]CaseResult, len(cases))
	sem := make(chan struct{}, concurrency)
	wg := sync.WaitGroup{}

	for i, c := range cases {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, sc SuiteCase) {
			defer wg.Done()
			defer func() { <-sem }()
			start := time.Now()
			report, err := s.Runner.Run(ctx, s.Version, sc.Operation, sc.Variant, nil)
			results[idx] = CaseResult{Case: sc, Report: report, Duration: time.Since(start), Err: err}
		}(i, c)
	}

	wg.Wait()
	return results
}
