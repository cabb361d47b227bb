package apitest

import (
	"errors"
	"fmt"
)

var (
	// ErrFixtureNotFound is returned when no fixture file backs the requested key.
	ErrFixtureNotFound = errors.New("fixture not found")
	// ErrFixtureMalformed is returned when a fixture file cannot be parsed as an HTTP message.
	ErrFixtureMalformed = errors.New("fixture malformed")
	// ErrContractMismatch matches any *MismatchError.
	ErrContractMismatch = errors.New("contract mismatch")
	// ErrTransport wraps failures of the injected transport.
	ErrTransport = errors.New("transport error")
)

// MismatchError reports a non-empty comparison result for a fixture key.
type MismatchError struct {
	Version   string
	Operation string
	Variant   string
	Report    Report
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s %s/%s: %d mismatch(es)\n%s", e.Version, e.Operation, e.Variant, len(e.Report.Entries), e.Report.Render())
}

// Is lets errors.Is(err, ErrContractMismatch) succeed.
func (e *MismatchError) Is(target error) bool {
	return target == ErrContractMismatch
}

func malformed(path string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrFixtureMalformed, path, fmt.Sprintf(format, args...))
}
