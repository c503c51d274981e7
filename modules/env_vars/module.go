package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/burstmission/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input narrows the returned variables. With neither field set, the whole
// environment is returned.
type Input struct {
	Names  []string `param:"names"`
	Prefix string   `param:"prefix"`
}

// Output defines the data structure returned by the tool.
type Output struct {
	All     map[string]string `json:"all"`
	Missing []string          `json:"missing,omitempty"`
}

// Lookup reads environment variables.
func Lookup(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}

	out := &Output{All: make(map[string]string)}
	if len(in.Names) > 0 {
		for _, name := range in.Names {
			if v, ok := os.LookupEnv(name); ok {
				out.All[name] = v
			} else {
				out.Missing = append(out.Missing, name)
			}
		}
		return out, nil
	}

	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], in.Prefix) {
			out.All[pair[0]] = pair[1]
		}
	}
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("env_vars", "", Lookup))
}
