package apitest

import (
	"context"
	"net/http"
	"testing"
)

// Fixture binds a Runner to one document version for use inside tests.
type Fixture struct {
	Runner  *Runner
	Version string
}

// NewFixture returns a Fixture for version.
func NewFixture(runner *Runner, version string) *Fixture {
	return &Fixture{Runner: runner, Version: version}
}

// Test replays operation and fails t with the rendered report when the
// response does not match variant.
func (f *Fixture) Test(t testing.TB, operation, variant string, override *http.Request) {
	t.Helper()
	f.TestContext(context.Background(), t, operation, variant, override)
}

// TestContext is Test with an explicit context.
func (f *Fixture) TestContext(ctx context.Context, t testing.TB, operation, variant string, override *http.Request) {
	t.Helper()

	report, err := f.Runner.Run(ctx, f.Version, operation, variant, override)
	if err != nil {
		t.Fatalf("%s %s/%s: %v", f.Version, operation, variant, err)
		return
	}
	if !report.OK() {
		t.Fatalf("%v", &MismatchError{Version: f.Version, Operation: operation, Variant: variant, Report: report})
	}
}
