package apitest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsDoc = `
openapi: 3.0.3
info:
  title: Products
  version: v1
paths:
  /api/products/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
      responses:
        '200':
          description: product
          content:
            application/json:
              schema:
                type: object
                required: [id, name]
                properties:
                  id:
                    type: integer
                  name:
                    type: string
`

func TestSchemaValidator(t *testing.T) {
	v, err := LoadSchemaValidator(context.Background(), []byte(productsDoc))
	require.NoError(t, err)

	req := &RequestDefinition{Method: http.MethodGet, URI: "/api/products/42"}
	ok := &ActualResponse{Status: 200, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"id":42,"name":"foobar"}`)}
	assert.Empty(t, v.Validate(context.Background(), req, ok))

	bad := &ActualResponse{Status: 200, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"id":"x"}`)}
	mismatches := v.Validate(context.Background(), req, bad)
	require.NotEmpty(t, mismatches)
	assert.Equal(t, AspectSchema, mismatches[0].Aspect)

	undocumented := &RequestDefinition{Method: http.MethodDelete, URI: "/api/products/42"}
	mismatches = v.Validate(context.Background(), undocumented, ok)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "documented operation", mismatches[0].Expected)
}

func TestRunnerWithSchemaValidator(t *testing.T) {
	v, err := LoadSchemaValidator(context.Background(), []byte(productsDoc))
	require.NoError(t, err)

	runner := NewRunner(NewStore("testdata/fixtures"), NewHandlerTransport(productHandler(t)), WithSchemaValidator(v))
	report, err := runner.Run(context.Background(), "v1", "GetProduct", "200", nil)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Render())
}
