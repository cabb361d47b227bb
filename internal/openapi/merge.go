package openapi

import (
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// merge folds fragments into the first one. Paths and components must be
// disjoint across fragments; tags and servers are de-duplicated.
func merge(fragments []*openapi3.T) (*openapi3.T, error) {
	if len(fragments) == 0 {
		return nil, errors.New("no openapi fragments to merge")
	}

	base := fragments[0]
	if base.Paths == nil {
		base.Paths = openapi3.NewPaths()
	}
	if base.Components == nil {
		components := openapi3.NewComponents()
		base.Components = &components
	}

	for _, doc := range fragments[1:] {
		if err := mergePaths(base.Paths, doc.Paths); err != nil {
			return nil, err
		}
		if doc.Components != nil {
			if err := mergeComponents(base.Components, doc.Components); err != nil {
				return nil, err
			}
		}
		base.Tags = appendUnique(base.Tags, doc.Tags, func(t *openapi3.Tag) string { return t.Name })
		base.Servers = appendUnique(base.Servers, doc.Servers, func(s *openapi3.Server) string { return s.URL })
		base.Security = append(base.Security, doc.Security...)
	}
	return base, nil
}

func mergePaths(dst, src *openapi3.Paths) error {
	if src == nil {
		return nil
	}
	for path, item := range src.Map() {
		if dst.Value(path) != nil {
			return fmt.Errorf("duplicate path %s", path)
		}
		dst.Set(path, item)
	}
	if len(src.Extensions) == 0 {
		return nil
	}
	return mergeMap(&dst.Extensions, src.Extensions, "path extension")
}

func mergeComponents(dst, src *openapi3.Components) error {
	return errors.Join(
		mergeMap(&dst.Schemas, src.Schemas, "schema"),
		mergeMap(&dst.Parameters, src.Parameters, "parameter"),
		mergeMap(&dst.Headers, src.Headers, "header"),
		mergeMap(&dst.RequestBodies, src.RequestBodies, "request body"),
		mergeMap(&dst.Responses, src.Responses, "response"),
		mergeMap(&dst.Examples, src.Examples, "example"),
		mergeMap(&dst.SecuritySchemes, src.SecuritySchemes, "security scheme"),
		mergeMap(&dst.Links, src.Links, "link"),
		mergeMap(&dst.Callbacks, src.Callbacks, "callback"),
		mergeMap(&dst.Extensions, src.Extensions, "component extension"),
	)
}

func mergeMap[M ~map[string]V, V any](dst *M, src M, label string) error {
	if len(src) == 0 {
		return nil
	}
	if *dst == nil {
		*dst = make(M, len(src))
	}
	for key, value := range src {
		if _, exists := (*dst)[key]; exists {
			return fmt.Errorf("duplicate %s %s", label, key)
		}
		(*dst)[key] = value
	}
	return nil
}

func appendUnique[S ~[]*E, E any](dst, src S, key func(*E) string) S {
	seen := make(map[string]struct{}, len(dst))
	for _, item := range dst {
		if item != nil {
			seen[key(item)] = struct{}{}
		}
	}
	for _, item := range src {
		if item == nil {
			continue
		}
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}
