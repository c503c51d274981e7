package registry

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// HandlerFunc is the signature of a plain tool function.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// funcTool adapts a HandlerFunc to the Tool interface.
type funcTool struct {
	name   string
	schema string
	fn     HandlerFunc
}

// NewFunc wraps fn as a Tool named name. schema may be empty.
func NewFunc(name, schema string, fn HandlerFunc) Tool {
	return &funcTool{name: name, schema: schema, fn: fn}
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) ParamSchema() string { return t.schema }

func (t *funcTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return t.fn(ctx, params)
}

// Decode copies params into the struct pointed to by out, using the
// `param` struct tag. Scalar types are converted leniently so values coming
// from YAML, JSON and HCL documents decode the same way.
func Decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create parameter decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
