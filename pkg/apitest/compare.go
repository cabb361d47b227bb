package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

const (
	missingValue = "<missing>"
	presentValue = "<present>"
)

// Check inspects one aspect of a response. Implementations must not mutate
// their inputs.
type Check interface {
	Check(actual *ActualResponse, expected *ExpectedResponse) []Mismatch
}

// CheckFunc adapts a function to Check.
type CheckFunc func(actual *ActualResponse, expected *ExpectedResponse) []Mismatch

// Check calls f.
func (f CheckFunc) Check(actual *ActualResponse, expected *ExpectedResponse) []Mismatch {
	return f(actual, expected)
}

// Comparator runs an ordered list of checks and collects every mismatch.
type Comparator struct {
	checks []Check
	bodies *BodyRegistry
}

// ComparatorOption customises a Comparator.
type ComparatorOption func(*Comparator)

// WithCheck appends an additional check after the built-in ones.
func WithCheck(c Check) ComparatorOption {
	return func(cmp *Comparator) {
		if c != nil {
			cmp.checks = append(cmp.checks, c)
		}
	}
}

// WithBodyComparer registers a body strategy for a media type or a
// structured suffix such as "+xml".
func WithBodyComparer(mediaType string, c BodyComparer) ComparatorOption {
	return func(cmp *Comparator) {
		cmp.bodies.Register(mediaType, c)
	}
}

// NewComparator returns a comparator checking status, headers and body.
func NewComparator(opts ...ComparatorOption) *Comparator {
	cmp := &Comparator{bodies: NewBodyRegistry()}
	cmp.checks = []Check{StatusCheck{}, HeaderCheck{}, BodyCheck{Registry: cmp.bodies}}
	for _, opt := range opts {
		if opt != nil {
			opt(cmp)
		}
	}
	return cmp
}

// Compare runs every check without short-circuiting.
func (c *Comparator) Compare(actual *ActualResponse, expected *ExpectedResponse) Report {
	var report Report
	for _, check := range c.checks {
		report.merge(check.Check(actual, expected))
	}
	return report
}

// StatusCheck compares status codes.
type StatusCheck struct{}

// Check implements Check.
func (StatusCheck) Check(actual *ActualResponse, expected *ExpectedResponse) []Mismatch {
	if actual.Status == expected.Status {
		return nil
	}
	return []Mismatch{{
		Aspect:   AspectStatus,
		Expected: strconv.Itoa(expected.Status),
		Actual:   strconv.Itoa(actual.Status),
	}}
}

// HeaderCheck verifies that every expected header is present in the actual
// response. Headers named only by a policy are checked too. Extra actual
// headers are allowed. Content-Length is skipped unless a policy names it;
// the body check covers it.
type HeaderCheck struct{}

// Check implements Check.
func (HeaderCheck) Check(actual *ActualResponse, expected *ExpectedResponse) []Mismatch {
	wanted := make(map[string]string, len(expected.Header)+len(expected.HeaderPolicies))
	for name, values := range expected.Header {
		wanted[canonicalHeader(name)] = strings.Join(values, ", ")
	}
	for name, policy := range expected.HeaderPolicies {
		canonical := canonicalHeader(name)
		if _, listed := wanted[canonical]; listed {
			continue
		}
		if policy.Match == MatchPattern && policy.Pattern != nil {
			wanted[canonical] = "~" + policy.Pattern.String()
		} else {
			wanted[canonical] = presentValue
		}
	}
	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Mismatch
	for _, canonical := range names {
		policy, hasPolicy := expected.HeaderPolicies[canonical]
		if canonical == "Content-Length" && !hasPolicy {
			continue
		}

		want := wanted[canonical]
		values := headerValues(actual.Header, canonical)
		if values == nil {
			out = append(out, Mismatch{Aspect: AspectHeader, Path: canonical, Expected: want, Actual: missingValue})
			continue
		}
		got := strings.Join(values, ", ")

		switch policy.Match {
		case MatchPresence:
		case MatchPattern:
			if policy.Pattern != nil && !policy.Pattern.MatchString(got) {
				out = append(out, Mismatch{Aspect: AspectHeader, Path: canonical, Expected: "~" + policy.Pattern.String(), Actual: got})
			}
		default:
			if got != want {
				out = append(out, Mismatch{Aspect: AspectHeader, Path: canonical, Expected: want, Actual: got})
			}
		}
	}
	return out
}

// headerValues looks a header up case-insensitively, tolerating
// non-canonical keys set directly on the map.
func headerValues(h http.Header, canonical string) []string {
	if v, ok := h[canonical]; ok {
		return v
	}
	for name, v := range h {
		if strings.EqualFold(name, canonical) {
			return v
		}
	}
	return nil
}

// BodyCheck dispatches body comparison by declared content type.
type BodyCheck struct {
	Registry *BodyRegistry
}

// Check implements Check.
func (b BodyCheck) Check(actual *ActualResponse, expected *ExpectedResponse) []Mismatch {
	if len(expected.Body) == 0 && len(actual.Body) == 0 {
		return nil
	}
	if len(expected.Body) == 0 || len(actual.Body) == 0 {
		return []Mismatch{{Aspect: AspectBody, Expected: preview(expected.Body), Actual: preview(actual.Body)}}
	}

	contentType := expected.ContentType()
	if contentType == "" {
		contentType = actual.ContentType()
	}

	registry := b.Registry
	if registry == nil {
		registry = NewBodyRegistry()
	}
	return registry.Lookup(contentType).CompareBody(expected.Body, actual.Body, expected.Exclusions)
}

func preview(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	return string(b)
}
