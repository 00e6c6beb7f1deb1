package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func detailsOf(t *testing.T, err error) []Detail {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *Error, got %v", err)
	return verr.Details
}

func TestValidate_ValidBodies(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		schema string
		body   string
	}{
		{"todo minimal", SchemaTodo, `{"title":"Test todo"}`},
		{"todo full", SchemaTodo, `{"title":"Test todo","description":"Test description","completed":true}`},
		{"todo null description", SchemaTodo, `{"title":"x","description":null}`},
		{"todo extra fields ignored", SchemaTodo, `{"title":"x","id":99,"created_at":"whenever"}`},
		{"milestone", SchemaMilestone, `{"title":"Launch","due_date":"2025-07-04"}`},
		{"milestone full", SchemaMilestone, `{"title":"Launch","description":"v1","completed":false,"due_date":"2024-02-29"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.schema, []byte(tt.body)))
		})
	}
}

func TestValidate_MissingTitle(t *testing.T) {
	v := newValidator(t)

	details := detailsOf(t, v.Validate(SchemaTodo, []byte(`{"description":"no title"}`)))
	require.Len(t, details, 1)
	assert.Equal(t, []string{"body", "title"}, details[0].Loc)
	assert.Equal(t, "missing", details[0].Type)
	assert.Equal(t, "Field required", details[0].Msg)
}

func TestValidate_MilestoneMissingBothRequired(t *testing.T) {
	v := newValidator(t)

	details := detailsOf(t, v.Validate(SchemaMilestone, []byte(`{}`)))

	var locs [][]string
	for _, d := range details {
		assert.Equal(t, "missing", d.Type)
		locs = append(locs, d.Loc)
	}
	assert.ElementsMatch(t, [][]string{{"body", "title"}, {"body", "due_date"}}, locs)
}

func TestValidate_WrongTypes(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		body string
		loc  []string
	}{
		{"title number", `{"title":42}`, []string{"body", "title"}},
		{"completed string", `{"title":"x","completed":"yes"}`, []string{"body", "completed"}},
		{"description number", `{"title":"x","description":1}`, []string{"body", "description"}},
		{"body array", `[{"title":"x"}]`, []string{"body"}},
		{"body string", `"title"`, []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := detailsOf(t, v.Validate(SchemaTodo, []byte(tt.body)))
			require.NotEmpty(t, details)
			assert.Equal(t, tt.loc, details[0].Loc)
			assert.Equal(t, "type_error", details[0].Type)
			assert.NotEmpty(t, details[0].Msg)
		})
	}
}

func TestValidate_BadDueDate(t *testing.T) {
	v := newValidator(t)

	for _, due := range []string{`"next tuesday"`, `"2025-13-01"`, `"2025-07-04T00:00:00Z"`} {
		t.Run(due, func(t *testing.T) {
			details := detailsOf(t, v.Validate(SchemaMilestone, []byte(`{"title":"x","due_date":`+due+`}`)))
			require.Len(t, details, 1)
			assert.Equal(t, []string{"body", "due_date"}, details[0].Loc)
			assert.Equal(t, "format_error", details[0].Type)
		})
	}
}

func TestValidate_InvalidJSON(t *testing.T) {
	v := newValidator(t)

	for _, body := range []string{``, `{`, `{"title":"x"} trailing`, `not json`} {
		t.Run(body, func(t *testing.T) {
			details := detailsOf(t, v.Validate(SchemaTodo, []byte(body)))
			require.Len(t, details, 1)
			assert.Equal(t, []string{"body"}, details[0].Loc)
			assert.Equal(t, "json_invalid", details[0].Type)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newValidator(t)

	err := v.Validate("widget", []byte(`{}`))
	require.Error(t, err)

	var verr *Error
	assert.False(t, errors.As(err, &verr))
}

func TestDetail_JSONShape(t *testing.T) {
	data, err := json.Marshal(Detail{Loc: []string{"body", "title"}, Msg: "Field required", Type: "missing"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"loc":["body","title"],"msg":"Field required","type":"missing"}`, string(data))
}

func TestInstanceLoc(t *testing.T) {
	assert.Equal(t, []string{"body"}, instanceLoc(""))
	assert.Equal(t, []string{"body", "title"}, instanceLoc("/title"))
	assert.Equal(t, []string{"body", "a/b", "c~d"}, instanceLoc("/a~1b/c~0d"))
}
