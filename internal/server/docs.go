// ABOUTME: Renders the /docs page from embedded markdown with goldmark
// ABOUTME: The endpoint table is generated from the OpenAPI document

package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yuin/goldmark"
)

//go:embed static/docs.md static/docs.html
var docsFS embed.FS

var docsTemplate = template.Must(template.ParseFS(docsFS, "static/docs.html"))

// renderDocs builds the docs page once at startup.
func renderDocs(doc *openapi3.T) ([]byte, error) {
	md, err := docsFS.ReadFile("static/docs.md")
	if err != nil {
		return nil, fmt.Errorf("reading docs: %w", err)
	}

	var content bytes.Buffer
	if err := goldmark.Convert(md, &content); err != nil {
		return nil, fmt.Errorf("converting docs: %w", err)
	}

	data := struct {
		Title      string
		Version    string
		Content    template.HTML
		Operations []operation
	}{
		Title:      Title,
		Version:    Version,
		Content:    template.HTML(content.String()),
		Operations: listOperations(doc),
	}

	var page bytes.Buffer
	if err := docsTemplate.Execute(&page, data); err != nil {
		return nil, fmt.Errorf("rendering docs: %w", err)
	}
	return page.Bytes(), nil
}

// handleDocs serves the rendered guide.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(s.docsPage)
	}
}
