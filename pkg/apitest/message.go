package apitest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const defaultProto = "HTTP/1.1"

// RequestDefinition is a stored request fixture.
type RequestDefinition struct {
	Method string
	URI    string
	Proto  string
	Header http.Header
	Body   []byte
}

// ContentType returns the declared media type of the body, without parameters.
func (r *RequestDefinition) ContentType() string {
	return mediaType(r.Header)
}

// Clone returns a deep copy.
func (r *RequestDefinition) Clone() *RequestDefinition {
	if r == nil {
		return nil
	}
	return &RequestDefinition{
		Method: r.Method,
		URI:    r.URI,
		Proto:  r.Proto,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
	}
}

// NewHTTPRequest builds an outbound request, resolving URI against baseURL
// when the URI is relative. An empty baseURL leaves the URI untouched.
func (r *RequestDefinition) NewHTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	target := r.URI
	if baseURL != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		ref, err := url.Parse(r.URI)
		if err != nil {
			return nil, fmt.Errorf("parse request uri: %w", err)
		}
		if !ref.IsAbs() {
			joined := base.JoinPath(ref.EscapedPath())
			joined.RawQuery = ref.RawQuery
			joined.Fragment = ref.Fragment
			ref = joined
		}
		target = ref.String()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	for name, values := range r.Header {
		if textproto.CanonicalMIMEHeaderKey(name) == "Content-Length" {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if host := r.Header.Get("Host"); host != "" {
		req.Host = host
	}
	return req, nil
}

// RequestFromHTTP captures an *http.Request. The request body is consumed and
// replaced with an equivalent reader so the caller can still send it.
func RequestFromHTTP(req *http.Request) (*RequestDefinition, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	def := &RequestDefinition{
		Method: req.Method,
		Proto:  req.Proto,
		Header: req.Header.Clone(),
	}
	if def.Header == nil {
		def.Header = http.Header{}
	}
	def.Header.Del("Content-Length")
	if req.URL != nil {
		def.URI = req.URL.RequestURI()
		if req.URL.IsAbs() {
			def.URI = req.URL.String()
		}
	}
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		def.Body = body
	}
	if len(def.Body) > 0 && def.Header.Get("Content-Type") == "" && req.Header.Get("Content-Type") != "" {
		def.Header.Set("Content-Type", req.Header.Get("Content-Type"))
	}
	return def, nil
}

// ExpectedResponse is a stored response variant for one operation.
type ExpectedResponse struct {
	Version   string
	Operation string
	Variant   string

	Status int
	Header http.Header
	Body   []byte

	// Exclusions are JSON pointers ignored during body comparison.
	Exclusions []string
	// HeaderPolicies override exact value matching for individual headers.
	HeaderPolicies map[string]HeaderPolicy
}

// ContentType returns the declared media type of the expected body.
func (e *ExpectedResponse) ContentType() string {
	return mediaType(e.Header)
}

// ActualResponse is captured from a single live exchange.
type ActualResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the media type reported by the server.
func (a *ActualResponse) ContentType() string {
	return mediaType(a.Header)
}

// ResponseFromHTTP reads and closes resp.Body.
func ResponseFromHTTP(resp *http.Response) (*ActualResponse, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &ActualResponse{Status: resp.StatusCode, Header: header, Body: body}, nil
}

func mediaType(h http.Header) string {
	raw := h.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(raw, ";", 2)[0]))
	}
	return mt
}

// parseRequest decodes a request fixture: "METHOD URI [HTTP/x.y]", headers,
// blank line, body.
func parseRequest(path string, data []byte) (*RequestDefinition, error) {
	start, header, body, err := parseMessage(path, data)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(start)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, malformed(path, "invalid request line %q", start)
	}
	if !validMethod(fields[0]) {
		return nil, malformed(path, "invalid method %q", fields[0])
	}
	if _, err := url.ParseRequestURI(fields[1]); err != nil {
		return nil, malformed(path, "invalid request uri %q", fields[1])
	}
	proto := defaultProto
	if len(fields) == 3 {
		if _, _, ok := http.ParseHTTPVersion(fields[2]); !ok {
			return nil, malformed(path, "invalid protocol %q", fields[2])
		}
		proto = fields[2]
	}

	// Content-Length is derived from the body when the request is sent.
	header.Del("Content-Length")

	return &RequestDefinition{
		Method: fields[0],
		URI:    fields[1],
		Proto:  proto,
		Header: header,
		Body:   body,
	}, nil
}

// parseResponse decodes a response fixture: "HTTP/x.y CODE [reason]",
// headers, blank line, body.
func parseResponse(path string, data []byte) (int, http.Header, []byte, error) {
	start, header, body, err := parseMessage(path, data)
	if err != nil {
		return 0, nil, nil, err
	}

	parts := strings.SplitN(start, " ", 3)
	if len(parts) < 2 {
		return 0, nil, nil, malformed(path, "invalid status line %q", start)
	}
	if _, _, ok := http.ParseHTTPVersion(parts[0]); !ok {
		return 0, nil, nil, malformed(path, "invalid protocol %q", parts[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 3 || code < 100 || code > 599 {
		return 0, nil, nil, malformed(path, "invalid status code %q", parts[1])
	}
	return code, header, body, nil
}

func parseMessage(path string, data []byte) (string, http.Header, []byte, error) {
	br := bufio.NewReader(bytes.NewReader(data))
	tp := textproto.NewReader(br)

	var start string
	for {
		line, err := tp.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", nil, nil, malformed(path, "missing start line")
			}
			return "", nil, nil, malformed(path, "read start line: %v", err)
		}
		if strings.TrimSpace(line) != "" {
			start = strings.TrimSpace(line)
			break
		}
	}

	mh, err := tp.ReadMIMEHeader()
	if err != nil && !(errors.Is(err, io.EOF) && mh != nil) {
		return "", nil, nil, malformed(path, "read headers: %v", err)
	}
	header := http.Header(mh)
	if header == nil {
		header = http.Header{}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return "", nil, nil, malformed(path, "read body: %v", err)
	}

	if cl := header.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return "", nil, nil, malformed(path, "invalid Content-Length %q", cl)
		}
		if len(body) < n {
			return "", nil, nil, malformed(path, "body shorter than Content-Length (%d < %d)", len(body), n)
		}
		body = body[:n]
	} else {
		body = trimFinalNewline(body)
	}
	if len(body) == 0 {
		body = nil
	}

	return start, header, body, nil
}

func trimFinalNewline(b []byte) []byte {
	if bytes.HasSuffix(b, []byte("\r\n")) {
		return b[:len(b)-2]
	}
	if bytes.HasSuffix(b, []byte("\n")) {
		return b[:len(b)-1]
	}
	return b
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func writeRequest(w io.Writer, req *RequestDefinition) error {
	proto := req.Proto
	if proto == "" {
		proto = defaultProto
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if _, err := fmt.Fprintf(w, "%s %s %s\r\n", method, req.URI, proto); err != nil {
		return err
	}
	return writeHeaderAndBody(w, req.Header, req.Body)
}

func writeResponse(w io.Writer, resp *ActualResponse) error {
	if _, err := fmt.Fprintf(w, "%s %d %s\r\n", defaultProto, resp.Status, http.StatusText(resp.Status)); err != nil {
		return err
	}
	return writeHeaderAndBody(w, resp.Header, resp.Body)
}

// hopHeaders are connection-scoped and never persisted.
var hopHeaders = []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Te", "Trailer", "Upgrade"}

func writeHeaderAndBody(w io.Writer, h http.Header, body []byte) error {
	header := h.Clone()
	if header == nil {
		header = http.Header{}
	}
	for _, name := range hopHeaders {
		header.Del(name)
	}
	header.Del("Content-Length")
	if len(body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range header[k] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
