// Package uitemplate renders the index pages of the documentation UIs and
// routes requests under a UI's route prefix.
package uitemplate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`%\(([A-Za-z]+)\)`)

// Values maps placeholder names to replacement text.
type Values map[string]string

// Render replaces every %(Name) placeholder in tmpl. Unknown placeholders
// are replaced with the empty string.
func Render(tmpl []byte, values Values) []byte {
	return placeholder.ReplaceAllFunc(tmpl, func(match []byte) []byte {
		name := string(placeholder.FindSubmatch(match)[1])
		return []byte(values[name])
	})
}

// Text escapes s for use inside HTML text or a quoted attribute.
func Text(s string) string {
	return html.EscapeString(s)
}

// JSON encodes v for embedding inside a <script> element. encoding/json
// already escapes <, > and &, so "</script>" cannot terminate the element.
func JSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode ui config: %w", err)
	}
	return string(raw), nil
}

// NormalizePrefix trims surrounding slashes and whitespace.
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// Page is a rendered index document.
type Page struct {
	Prefix string
	Body   []byte
}

// Middleware serves page under its prefix and passes other requests to next:
//
//	GET /{prefix}            -> 301 /{prefix}/
//	GET /{prefix}/           -> page
//	GET /{prefix}/index.html -> page
func (p Page) Middleware(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	base := "/"
	if p.Prefix != "" {
		base = "/" + p.Prefix + "/"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		path := r.URL.Path
		switch {
		case p.Prefix != "" && path == strings.TrimSuffix(base, "/"):
			target := base
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		case path == base || path == base+"index.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = bytes.NewReader(p.Body).WriteTo(w)
			}
		default:
			next.ServeHTTP(w, r)
		}
	})
}
