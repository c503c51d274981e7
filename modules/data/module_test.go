package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("inline content", func(t *testing.T) {
		out, err := ParseJSON(context.Background(), map[string]any{"content": `{"a": 1, "b": [true, "x"]}`})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1), "b": []any{true, "x"}}, out)
	})

	t.Run("file content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, os.WriteFile(path, []byte(`[1, 2]`), 0o644))

		out, err := ParseJSON(context.Background(), map[string]any{"path": path})

		require.NoError(t, err)
		assert.Equal(t, []any{float64(1), float64(2)}, out)
	})

	testCases := []struct {
		name   string
		params map[string]any
		errMsg string
	}{
		{name: "no input", params: map[string]any{}, errMsg: ErrNoInput.Error()},
		{name: "malformed", params: map[string]any{"content": `{"a":`}, errMsg: "failed to parse JSON"},
		{name: "trailing data", params: map[string]any{"content": `{} {}`}, errMsg: "trailing data"},
		{name: "unsafe path", params: map[string]any{"path": "../x.json"}, errMsg: "parent directory"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON(context.Background(), tc.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestParseYAML(t *testing.T) {
	out, err := ParseYAML(context.Background(), map[string]any{"content": "name: demo\nreplicas: 3\ntags: [a, b]\n"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":     "demo",
		"replicas": float64(3),
		"tags":     []any{"a", "b"},
	}, out)

	_, err = ParseYAML(context.Background(), map[string]any{"content": "a: [unclosed"})
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestValidateSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	t.Run("valid document", func(t *testing.T) {
		out, err := ValidateSchema(context.Background(), map[string]any{
			"schema":   schema,
			"document": map[string]any{"name": "x"},
		})
		require.NoError(t, err)
		assert.Equal(t, ValidationResult{Valid: true}, out)
	})

	t.Run("invalid document fails the step", func(t *testing.T) {
		_, err := ValidateSchema(context.Background(), map[string]any{
			"schema":   schema,
			"document": map[string]any{"name": 5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document does not match schema")
	})

	t.Run("invalid document reported when tolerated", func(t *testing.T) {
		out, err := ValidateSchema(context.Background(), map[string]any{
			"schema":          `{"type": "array"}`,
			"document":        map[string]any{},
			"fail_on_invalid": false,
		})
		require.NoError(t, err)
		res := out.(ValidationResult)
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("broken schema", func(t *testing.T) {
		_, err := ValidateSchema(context.Background(), map[string]any{
			"schema":   `{"type": 12}`,
			"document": map[string]any{},
		})
		assert.ErrorContains(t, err, "schema compile failed")
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := ValidateSchema(context.Background(), map[string]any{"schema": schema})
		assert.ErrorContains(t, err, "document is required")
	})
}

func TestProcessCSV(t *testing.T) {
	const content = "name,team,score\nada,core,9\nbob,web,7\ncy,core,8\n"

	testCases := []struct {
		name   string
		params map[string]any
		want   CSVResult
	}{
		{
			name:   "header rows become objects",
			params: map[string]any{"content": content, "limit": 1},
			want: CSVResult{
				Headers:  []string{"name", "team", "score"},
				Rows:     []any{map[string]string{"name": "ada", "team": "core", "score": "9"}},
				RowCount: 1,
			},
		},
		{
			name:   "filter and project",
			params: map[string]any{"content": content, "filter_column": "team", "filter_value": "core", "columns": []any{"name"}},
			want: CSVResult{
				Headers:  []string{"name"},
				Rows:     []any{map[string]string{"name": "ada"}, map[string]string{"name": "cy"}},
				RowCount: 2,
			},
		},
		{
			name:   "no headers with custom delimiter",
			params: map[string]any{"content": "a;b\nc;d\n", "delimiter": ";", "has_headers": false},
			want: CSVResult{
				Rows:     []any{[]string{"a", "b"}, []string{"c", "d"}},
				RowCount: 2,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ProcessCSV(context.Background(), tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}

	errCases := []struct {
		name   string
		params map[string]any
		errMsg string
	}{
		{name: "unknown column", params: map[string]any{"content": content, "columns": []any{"nope"}}, errMsg: `unknown csv column "nope"`},
		{name: "bad delimiter", params: map[string]any{"content": content, "delimiter": "ab"}, errMsg: "invalid csv delimiter"},
		{name: "empty input", params: map[string]any{"content": "\n"}, errMsg: "no header row"},
		{name: "projection without headers", params: map[string]any{"content": content, "has_headers": false, "columns": []any{"a"}}, errMsg: "require has_headers"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ProcessCSV(context.Background(), tc.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
