package apitest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

// Transport sends a request and returns the captured response. Timeout
// policy belongs to the implementation.
type Transport interface {
	Send(ctx context.Context, req *RequestDefinition) (*ActualResponse, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *RequestDefinition) (*ActualResponse, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req *RequestDefinition) (*ActualResponse, error) {
	return f(ctx, req)
}

// HandlerTransport dispatches requests to an in-process http.Handler.
type HandlerTransport struct {
	Handler http.Handler
}

// NewHandlerTransport wraps h.
func NewHandlerTransport(h http.Handler) *HandlerTransport {
	return &HandlerTransport{Handler: h}
}

// Send implements Transport.
func (t *HandlerTransport) Send(ctx context.Context, def *RequestDefinition) (*ActualResponse, error) {
	if t == nil || t.Handler == nil {
		return nil, fmt.Errorf("%w: no handler configured", ErrTransport)
	}
	req, err := def.NewHTTPRequest(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	if req.Host == "" {
		req.Host = "example.com"
	}
	req.RequestURI = def.URI
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	t.Handler.ServeHTTP(rec, req)
	return ResponseFromHTTP(rec.Result())
}

// ClientTransport sends requests over the network to BaseURL.
type ClientTransport struct {
	Client  *http.Client
	BaseURL string
}

// NewClientTransport returns a transport using client (http.DefaultClient
// when nil).
func NewClientTransport(client *http.Client, baseURL string) *ClientTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClientTransport{Client: client, BaseURL: strings.TrimSpace(baseURL)}
}

// Send implements Transport.
func (t *ClientTransport) Send(ctx context.Context, def *RequestDefinition) (*ActualResponse, error) {
	req, err := def.NewHTTPRequest(ctx, t.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	actual, err := ResponseFromHTTP(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return actual, nil
}
