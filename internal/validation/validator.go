// ABOUTME: JSON Schema validation of todo and milestone request bodies
// ABOUTME: Flattens schema errors into located details for 422 responses

package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names, one per embedded document.
const (
	SchemaTodo      = "todo"
	SchemaMilestone = "milestone"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Detail locates one validation failure. Loc starts with "body" followed by
// the path of the offending field.
type Detail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Error is returned when a body fails validation.
type Error struct {
	Details []Detail
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = fmt.Sprintf("%s: %s", strings.Join(d.Loc, "."), d.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator holds the compiled request schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("reading schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, file := range names {
		schema, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", file, err)
		}
		v.schemas[strings.TrimSuffix(file, ".json")] = schema
	}
	return v, nil
}

// Validate checks body against the named schema. It returns *Error when the
// body is not JSON or does not conform.
func (v *Validator) Validate(schema string, body []byte) error {
	s, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}

	doc, err := decode(body)
	if err != nil {
		return &Error{Details: []Detail{{
			Loc:  []string{"body"},
			Msg:  "Invalid JSON: " + err.Error(),
			Type: "json_invalid",
		}}}
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validating %s: %w", schema, err)
	}

	var details []Detail
	collectDetails(verr, &details)
	return &Error{Details: details}
}

// decode parses exactly one JSON value, keeping numbers as json.Number.
func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return doc, nil
}

var quotedName = regexp.MustCompile(`'([^']*)'`)

// collectDetails appends one Detail per leaf error.
func collectDetails(err *jsonschema.ValidationError, out *[]Detail) {
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			collectDetails(cause, out)
		}
		return
	}

	loc := instanceLoc(err.InstanceLocation)
	keyword := path.Base(err.KeywordLocation)

	switch keyword {
	case "required":
		// One detail per missing property, located at the property itself
		for _, m := range quotedName.FindAllStringSubmatch(err.Message, -1) {
			*out = append(*out, Detail{
				Loc:  append(append([]string{}, loc...), m[1]),
				Msg:  "Field required",
				Type: "missing",
			})
		}
	case "type":
		*out = append(*out, Detail{Loc: loc, Msg: err.Message, Type: "type_error"})
	case "format":
		*out = append(*out, Detail{Loc: loc, Msg: err.Message, Type: "format_error"})
	default:
		*out = append(*out, Detail{Loc: loc, Msg: err.Message, Type: "value_error"})
	}
}

// instanceLoc converts a JSON pointer into a body-rooted location.
func instanceLoc(pointer string) []string {
	loc := []string{"body"}
	if pointer == "" || pointer == "/" {
		return loc
	}
	for _, tok := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		loc = append(loc, tok)
	}
	return loc
}
