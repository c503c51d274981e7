package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is an executable capability. Invoke receives the step's parameters
// untouched by the engine and returns a structured output or an error.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// SchemaProvider is implemented by tools that publish a JSON Schema for
// their parameters. The registry compiles the schema at registration time.
type SchemaProvider interface {
	ParamSchema() string
}

// Module is the interface that all tool modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the tools available to one session.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// New creates and initializes an empty Registry.
func New() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register binds name to tool, replacing any previous binding. It is meant
// for built-in tools: an invalid parameter schema is a programmer error, so
// Register panics. Tools supplied at runtime go through TryRegister.
func (r *Registry) Register(name string, tool Tool) {
	if err := r.TryRegister(name, tool); err != nil {
		panic(err)
	}
}

// TryRegister binds name to tool like Register, but reports an invalid
// parameter schema as an error and leaves the registry unchanged.
func (r *Registry) TryRegister(name string, tool Tool) error {
	var compiled *jsonschema.Schema
	if sp, ok := tool.(SchemaProvider); ok && sp.ParamSchema() != "" {
		var err error
		compiled, err = CompileSchema(name, sp.ParamSchema())
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[name] = tool
	if compiled != nil {
		r.schemas[name] = compiled
	} else {
		delete(r.schemas, name)
	}
	return nil
}

// RegisterTool registers tool under its own name.
func (r *Registry) RegisterTool(tool Tool) {
	r.Register(tool.Name(), tool)
}

// RegisterModules lets every module add its tools to the registry.
func (r *Registry) RegisterModules(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Get returns the tool bound to name. A missing tool is not an error here;
// the executor decides what absence means.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
