package apitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// volatileHeaders change on every exchange and are not persisted.
var volatileHeaders = []string{"Date", "X-Request-Id", "X-Trace-Id"}

// Recorder writes fixtures in the layout read by Store. Existing fixtures for
// the same key are overwritten.
type Recorder struct {
	root string
}

// NewRecorder returns a Recorder writing under root.
func NewRecorder(root string) *Recorder {
	return &Recorder{root: root}
}

// Record persists req and resp as the request fixture and the given variant.
func (r *Recorder) Record(version, operation, variant string, req *RequestDefinition, resp *ActualResponse) error {
	if req == nil || resp == nil {
		return errors.New("record requires a request and a response")
	}
	if err := validSegment(variant); err != nil {
		return err
	}
	rel, err := fixturePath(version, operation, "")
	if err != nil {
		return err
	}
	dir := filepath.Join(r.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}

	var reqBuf bytes.Buffer
	if err := writeRequest(&reqBuf, req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, requestFile), reqBuf.Bytes()); err != nil {
		return err
	}

	stored := &ActualResponse{Status: resp.Status, Header: resp.Header.Clone(), Body: resp.Body}
	for _, name := range volatileHeaders {
		stored.Header.Del(name)
	}
	var respBuf bytes.Buffer
	if err := writeResponse(&respBuf, stored); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, responseFilePrefix+variant+responseFileSuffix), respBuf.Bytes())
}

// Capture sends req through transport and records the exchange. An empty
// variant is named after the response status code.
func (r *Recorder) Capture(ctx context.Context, transport Transport, version, operation, variant string, req *RequestDefinition) (*ActualResponse, error) {
	resp, err := transport.Send(ctx, req.Clone())
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil, err
	}
	if variant == "" {
		variant = strconv.Itoa(resp.Status)
	}
	if err := r.Record(version, operation, variant, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FixtureKey identifies one stored exchange.
type FixtureKey struct {
	Version   string
	Operation string
	Variant   string
}

type fixtureKeyContextKey struct{}

// WithFixtureKey attaches key to ctx. Runner does this before every send.
func WithFixtureKey(ctx context.Context, key FixtureKey) context.Context {
	return context.WithValue(ctx, fixtureKeyContextKey{}, key)
}

// FixtureKeyFromContext returns the key attached by WithFixtureKey.
func FixtureKeyFromContext(ctx context.Context) (FixtureKey, bool) {
	key, ok := ctx.Value(fixtureKeyContextKey{}).(FixtureKey)
	return key, ok
}

// RecordingTransport forwards to Next and records every exchange sent with a
// fixture key in its context. Exchanges without a key pass through.
type RecordingTransport struct {
	Next     Transport
	Recorder *Recorder
}

// NewRecordingTransport wraps next.
func NewRecordingTransport(next Transport, recorder *Recorder) *RecordingTransport {
	return &RecordingTransport{Next: next, Recorder: recorder}
}

// Send implements Transport.
func (t *RecordingTransport) Send(ctx context.Context, req *RequestDefinition) (*ActualResponse, error) {
	if t.Next == nil {
		return nil, fmt.Errorf("%w: no transport to record", ErrTransport)
	}
	resp, err := t.Next.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	key, ok := FixtureKeyFromContext(ctx)
	if !ok || t.Recorder == nil {
		return resp, nil
	}
	variant := key.Variant
	if variant == "" {
		variant = strconv.Itoa(resp.Status)
	}
	if err := t.Recorder.Record(key.Version, key.Operation, variant, req, resp); err != nil {
		return nil, fmt.Errorf("record %s/%s/%s: %w", key.Version, key.Operation, variant, err)
	}
	return resp, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fixture-*")
	if err != nil {
		return fmt.Errorf("create temp fixture: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close fixture %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod fixture %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename fixture %s: %w", path, err)
	}
	return nil
}
