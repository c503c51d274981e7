package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

type validateInput struct {
	Schema        any   `param:"schema"`
	Document      any   `param:"document"`
	FailOnInvalid *bool `param:"fail_on_invalid"`
}

// ValidationResult is the output of validate_schema.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateSchema checks document against a JSON Schema given either as an
// object or as a JSON string. A mismatch fails the step unless
// fail_on_invalid is false.
func ValidateSchema(ctx context.Context, params map[string]any) (any, error) {
	var in validateInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if in.Schema == nil {
		return nil, errors.New("schema is required")
	}
	if in.Document == nil {
		return nil, errors.New("document is required")
	}

	schemaText, ok := in.Schema.(string)
	if !ok {
		b, err := json.Marshal(in.Schema)
		if err != nil {
			return nil, fmt.Errorf("schema is not JSON-compatible: %w", err)
		}
		schemaText = string(b)
	}
	compiled, err := registry.CompileSchema("validate_schema", schemaText)
	if err != nil {
		return nil, err
	}

	doc, err := registry.Normalize(in.Document)
	if err != nil {
		return nil, fmt.Errorf("document is not JSON-compatible: %w", err)
	}

	result := ValidationResult{Valid: true}
	if verr := compiled.Validate(doc); verr != nil {
		result.Valid = false
		result.Errors = describe(verr)
	}
	ctxlog.FromContext(ctx).Debug("Validated document", "valid", result.Valid, "errors", len(result.Errors))

	if !result.Valid && (in.FailOnInvalid == nil || *in.FailOnInvalid) {
		return nil, fmt.Errorf("document does not match schema: %s", strings.Join(result.Errors, "; "))
	}
	return result, nil
}

func describe(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var msgs []string
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Error))
	}
	if len(msgs) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
