package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
	"github.com/vk/burstmission/modules/file"
	"gopkg.in/yaml.v3"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ErrNoInput is returned when a step gives neither content nor path.
var ErrNoInput = errors.New("either content or path is required")

// Source selects inline content or a file to read.
type Source struct {
	Content string `param:"content"`
	Path    string `param:"path"`
}

func (s Source) read() ([]byte, error) {
	switch {
	case s.Content != "":
		return []byte(s.Content), nil
	case s.Path != "":
		path, err := file.SanitizePath(s.Path)
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return b, nil
	default:
		return nil, ErrNoInput
	}
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("parse_json", sourceSchema, ParseJSON))
	r.RegisterTool(registry.NewFunc("parse_yaml", sourceSchema, ParseYAML))
	r.RegisterTool(registry.NewFunc("validate_schema", validateSchema, ValidateSchema))
	r.RegisterTool(registry.NewFunc("csv_process", csvSchema, ProcessCSV))
}

// ParseJSON decodes a JSON document.
func ParseJSON(ctx context.Context, params map[string]any) (any, error) {
	var src Source
	if err := registry.Decode(params, &src); err != nil {
		return nil, err
	}
	raw, err := src.read()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("failed to parse JSON: trailing data after document")
	}

	ctxlog.FromContext(ctx).Debug("Parsed JSON document", "bytes", len(raw))
	return plain(out), nil
}

// ParseYAML decodes a single YAML document.
func ParseYAML(ctx context.Context, params map[string]any) (any, error) {
	var src Source
	if err := registry.Decode(params, &src); err != nil {
		return nil, err
	}
	raw, err := src.read()
	if err != nil {
		return nil, err
	}

	var out any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("Parsed YAML document", "bytes", len(raw))
	return plain(out), nil
}

// plain rewrites decoded documents into string-keyed maps, slices and
// float64 numbers.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = plain(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = plain(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = plain(e)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
