package apitest

import (
	"fmt"
	"net/textproto"
	"regexp"
	"strings"
)

// HeaderMatch selects how an expected header value is checked.
type HeaderMatch int

const (
	// MatchExact requires the joined header values to be equal.
	MatchExact HeaderMatch = iota
	// MatchPresence only requires the header to be present.
	MatchPresence
	// MatchPattern requires the joined header values to match a regexp.
	MatchPattern
)

// HeaderPolicy describes how one expected header is compared.
type HeaderPolicy struct {
	Match   HeaderMatch
	Pattern *regexp.Regexp
}

// Presence returns a policy that only checks the header exists.
func Presence() HeaderPolicy {
	return HeaderPolicy{Match: MatchPresence}
}

// Pattern returns a policy matching the header value against expr.
func Pattern(expr string) (HeaderPolicy, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return HeaderPolicy{}, fmt.Errorf("compile header pattern: %w", err)
	}
	return HeaderPolicy{Match: MatchPattern, Pattern: re}, nil
}

// ParseHeaderPolicy decodes the textual policy names used by fixture rules.
func ParseHeaderPolicy(name, pattern string) (HeaderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exact":
		return HeaderPolicy{Match: MatchExact}, nil
	case "presence", "present":
		return Presence(), nil
	case "pattern", "regex", "regexp":
		if pattern == "" {
			return HeaderPolicy{}, fmt.Errorf("pattern policy requires a pattern")
		}
		return Pattern(pattern)
	default:
		return HeaderPolicy{}, fmt.Errorf("unknown header policy %q", name)
	}
}

func canonicalHeader(name string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
}
