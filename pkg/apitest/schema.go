package apitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// SchemaValidator checks actual responses against an OpenAPI document.
type SchemaValidator struct {
	router routers.Router
}

// NewSchemaValidator builds a validator for doc.
func NewSchemaValidator(doc *openapi3.T) (*SchemaValidator, error) {
	if doc == nil {
		return nil, errors.New("openapi document required")
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &SchemaValidator{router: router}, nil
}

// LoadSchemaValidator loads and validates an OpenAPI document from raw JSON
// or YAML.
func LoadSchemaValidator(ctx context.Context, raw []byte) (*SchemaValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return NewSchemaValidator(doc)
}

// Validate returns one schema mismatch per violation.
func (v *SchemaValidator) Validate(ctx context.Context, def *RequestDefinition, actual *ActualResponse) []Mismatch {
	req, err := def.NewHTTPRequest(ctx, "")
	if err != nil {
		return []Mismatch{{Aspect: AspectSchema, Expected: "routable request", Actual: err.Error()}}
	}
	if req.URL.Host == "" {
		req.URL.Scheme = "http"
		req.URL.Host = "localhost"
	}

	route, params, err := v.router.FindRoute(req)
	if err != nil {
		return []Mismatch{{Aspect: AspectSchema, Path: req.URL.Path, Expected: "documented operation", Actual: err.Error()}}
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
		},
		Status: actual.Status,
		Header: cloneOrEmpty(actual.Header),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
			MultiError:            true,
		},
	}
	input.SetBodyBytes(bytes.Clone(actual.Body))

	err = openapi3filter.ValidateResponse(ctx, input)
	if err == nil {
		return nil
	}

	label := fmt.Sprintf("%s %s", strings.ToUpper(route.Method), route.Path)
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		out := make([]Mismatch, 0, len(multi))
		for _, e := range multi {
			out = append(out, Mismatch{Aspect: AspectSchema, Path: route.Path, Expected: "conforms to " + label, Actual: e.Error()})
		}
		return out
	}
	return []Mismatch{{Aspect: AspectSchema, Path: route.Path, Expected: "conforms to " + label, Actual: err.Error()}}
}

func cloneOrEmpty(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}
