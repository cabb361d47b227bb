package apitest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// JSONComparer performs a structural diff. Object key order and whitespace
// are ignored, numbers compare by value, arrays compare by position.
type JSONComparer struct{}

// CompareBody implements BodyComparer.
func (JSONComparer) CompareBody(expected, actual []byte, exclusions []string) []Mismatch {
	exp, err := decodeJSON(expected)
	if err != nil {
		return []Mismatch{{Aspect: AspectBody, Expected: "valid JSON", Actual: fmt.Sprintf("expected body invalid: %v", err)}}
	}
	act, err := decodeJSON(actual)
	if err != nil {
		return []Mismatch{{Aspect: AspectBody, Expected: preview(expected), Actual: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	d := jsonDiff{exclusions: parseExclusions(exclusions)}
	d.walk(nil, exp, act)
	return d.out
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

type jsonDiff struct {
	exclusions [][]string
	out        []Mismatch
}

func (d *jsonDiff) walk(path []string, exp, act any) {
	if d.excluded(path) {
		return
	}

	switch e := exp.(type) {
	case map[string]any:
		a, ok := act.(map[string]any)
		if !ok {
			d.report(path, exp, act)
			return
		}
		d.walkObject(path, e, a)
	case []any:
		a, ok := act.([]any)
		if !ok {
			d.report(path, exp, act)
			return
		}
		d.walkArray(path, e, a)
	case json.Number:
		a, ok := act.(json.Number)
		if !ok || !numbersEqual(e, a) {
			d.report(path, exp, act)
		}
	default:
		// string, bool or nil
		if exp != act {
			d.report(path, exp, act)
		}
	}
}

func (d *jsonDiff) walkObject(path []string, exp, act map[string]any) {
	for _, key := range sortedKeys(exp) {
		child := appendPath(path, key)
		av, ok := act[key]
		if !ok {
			if !d.excluded(child) {
				d.out = append(d.out, Mismatch{Aspect: AspectBody, Path: pointer(child), Expected: render(exp[key]), Actual: "<missing key>"})
			}
			continue
		}
		d.walk(child, exp[key], av)
	}
	for _, key := range sortedKeys(act) {
		if _, ok := exp[key]; ok {
			continue
		}
		child := appendPath(path, key)
		if !d.excluded(child) {
			d.out = append(d.out, Mismatch{Aspect: AspectBody, Path: pointer(child), Expected: "<absent>", Actual: render(act[key])})
		}
	}
}

func (d *jsonDiff) walkArray(path []string, exp, act []any) {
	n := len(exp)
	if len(act) < n {
		n = len(act)
	}
	for i := 0; i < n; i++ {
		d.walk(appendPath(path, strconv.Itoa(i)), exp[i], act[i])
	}
	for i := n; i < len(exp); i++ {
		child := appendPath(path, strconv.Itoa(i))
		if !d.excluded(child) {
			d.out = append(d.out, Mismatch{Aspect: AspectBody, Path: pointer(child), Expected: render(exp[i]), Actual: "<missing element>"})
		}
	}
	for i := n; i < len(act); i++ {
		child := appendPath(path, strconv.Itoa(i))
		if !d.excluded(child) {
			d.out = append(d.out, Mismatch{Aspect: AspectBody, Path: pointer(child), Expected: "<absent>", Actual: render(act[i])})
		}
	}
}

func (d *jsonDiff) report(path []string, exp, act any) {
	d.out = append(d.out, Mismatch{Aspect: AspectBody, Path: pointer(path), Expected: render(exp), Actual: render(act)})
}

// excluded reports whether path equals or lies under an exclusion pattern.
func (d *jsonDiff) excluded(path []string) bool {
	for _, pattern := range d.exclusions {
		if len(pattern) > len(path) {
			continue
		}
		match := true
		for i, seg := range pattern {
			if seg != "*" && seg != path[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func parseExclusions(ptrs []string) [][]string {
	out := make([][]string, 0, len(ptrs))
	for _, ptr := range ptrs {
		if ptr == "" {
			out = append(out, []string{})
			continue
		}
		segs := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
		for i, seg := range segs {
			segs[i] = unescapePointer(seg)
		}
		out = append(out, segs)
	}
	return out
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

// pointer renders path as an RFC 6901 JSON pointer.
func pointer(path []string) string {
	if len(path) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, seg := range path {
		sb.WriteByte('/')
		sb.WriteString(escapePointer(seg))
	}
	return sb.String()
}

func escapePointer(seg string) string {
	seg = strings.ReplaceAll(seg, "~", "~0")
	return strings.ReplaceAll(seg, "/", "~1")
}

func unescapePointer(seg string) string {
	seg = strings.ReplaceAll(seg, "~1", "/")
	return strings.ReplaceAll(seg, "~0", "~")
}

func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ra, okA := new(big.Rat).SetString(string(a))
	rb, okB := new(big.Rat).SetString(string(b))
	if !okA || !okB {
		return false
	}
	return ra.Cmp(rb) == 0
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
