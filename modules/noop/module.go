package noop

import (
	"context"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Invoke returns its parameters unchanged.
func Invoke(ctx context.Context, params map[string]any) (any, error) {
	ctxlog.FromContext(ctx).Debug("noop invoked", "params", len(params))
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("noop", "", Invoke))
}
