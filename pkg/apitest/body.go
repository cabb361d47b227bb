package apitest

import (
	"bytes"
	"strings"
	"sync"
)

// BodyComparer compares two non-empty bodies of one media type.
type BodyComparer interface {
	CompareBody(expected, actual []byte, exclusions []string) []Mismatch
}

// BodyComparerFunc adapts a function to BodyComparer.
type BodyComparerFunc func(expected, actual []byte, exclusions []string) []Mismatch

// CompareBody calls f.
func (f BodyComparerFunc) CompareBody(expected, actual []byte, exclusions []string) []Mismatch {
	return f(expected, actual, exclusions)
}

// BodyRegistry maps media types to comparison strategies. Keys are either a
// full media type ("application/json") or a structured suffix ("+json").
type BodyRegistry struct {
	mu       sync.RWMutex
	byType   map[string]BodyComparer
	fallback BodyComparer
}

// NewBodyRegistry returns a registry with JSON handling and a byte-exact
// fallback.
func NewBodyRegistry() *BodyRegistry {
	r := &BodyRegistry{
		byType:   make(map[string]BodyComparer),
		fallback: BytesComparer{},
	}
	r.Register("application/json", JSONComparer{})
	r.Register("text/json", JSONComparer{})
	r.Register("+json", JSONComparer{})
	return r
}

// Register binds c to a media type or suffix. A nil comparer removes it.
func (r *BodyRegistry) Register(mediaType string, c BodyComparer) {
	key := strings.ToLower(strings.TrimSpace(mediaType))
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.byType, key)
		return
	}
	r.byType[key] = c
}

// Lookup resolves the comparer for a media type: exact match, then
// structured suffix, then the byte-exact fallback.
func (r *BodyRegistry) Lookup(mediaType string) BodyComparer {
	key := strings.ToLower(strings.TrimSpace(mediaType))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byType[key]; ok {
		return c
	}
	if idx := strings.LastIndex(key, "+"); idx >= 0 {
		if c, ok := r.byType[key[idx:]]; ok {
			return c
		}
	}
	return r.fallback
}

// BytesComparer requires bodies to be byte-identical.
type BytesComparer struct{}

// CompareBody implements BodyComparer.
func (BytesComparer) CompareBody(expected, actual []byte, _ []string) []Mismatch {
	if bytes.Equal(expected, actual) {
		return nil
	}
	return []Mismatch{{Aspect: AspectBody, Expected: preview(expected), Actual: preview(actual)}}
}
