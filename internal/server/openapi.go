// ABOUTME: Embedded OpenAPI 3 description of the HTTP API
// ABOUTME: Loaded and validated with kin-openapi at startup, served as JSON

package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed static/openapi.yaml
var openapiYAML []byte

// loadOpenAPI parses and validates the embedded document.
func loadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("loading openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validating openapi document: %w", err)
	}

	doc.Info.Title = Title
	doc.Info.Description = Description
	doc.Info.Version = Version
	return doc, nil
}

// operation is one documented method on a path.
type operation struct {
	Method  string
	Path    string
	Summary string
}

// methodOrder controls how operations on one path are listed.
var methodOrder = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// listOperations flattens doc into path order, then method order.
func listOperations(doc *openapi3.T) []operation {
	var ops []operation
	for _, path := range slices.Sorted(maps.Keys(doc.Paths.Map())) {
		item := doc.Paths.Value(path)
		for _, method := range methodOrder {
			if op := item.GetOperation(method); op != nil {
				ops = append(ops, operation{Method: method, Path: path, Summary: op.Summary})
			}
		}
	}
	return ops
}

// handleOpenAPI serves the API description.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, http.StatusOK, s.openapiDoc)
}

func encodeOpenAPI(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding openapi document: %w", err)
	}
	return data, nil
}
