package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a JSON Schema (draft 2020-12 unless the document
// says otherwise) under a stable resource URL derived from name.
func CompileSchema(name, schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://burstmission.local/schemas/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("schema load failed for %q: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed for %q: %w", name, err)
	}
	return compiled, nil
}

// SetSchema attaches a parameter schema to an already known or future tool
// name. An empty schema removes it.
func (r *Registry) SetSchema(name, schema string) error {
	if schema == "" {
		r.mu.Lock()
		delete(r.schemas, name)
		r.mu.Unlock()
		return nil
	}

	compiled, err := CompileSchema(name, schema)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schemas[name] = compiled
	r.mu.Unlock()
	return nil
}

// ValidateParams checks params against the schema registered for name.
// Tools without a schema accept anything.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	doc, err := Normalize(params)
	if err != nil {
		return fmt.Errorf("parameters for %q are not JSON-compatible: %w", name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("parameters for %q failed schema validation: %w", name, err)
	}
	return nil
}

// Normalize converts an arbitrary decoded document (JSON, YAML or HCL) into
// the plain JSON value model the schema validator understands. Numbers stay
// json.Number so large integers keep their precision.
func Normalize(v any) (any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
