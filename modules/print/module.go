package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Nil means standard output.
	Out io.Writer

	mu sync.Mutex
}

// Input defines the parameters of the print tool.
type Input struct {
	Message string `param:"message"`
	Value   any    `param:"value"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("print", "", m.Print))
}

// Print writes message and value, with map keys in sorted order. Concurrent
// steps never interleave their lines.
func (m *Module) Print(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Printing input")

	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if in.Message != "" {
		fmt.Fprintf(out, "      %s\n", in.Message)
	}
	switch v := in.Value.(type) {
	case nil:
		if in.Message == "" {
			fmt.Fprintln(out, "      (null)")
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "      %s = %v\n", k, v[k])
		}
	default:
		fmt.Fprintf(out, "      %v\n", v)
	}

	return in.Message, nil
}
